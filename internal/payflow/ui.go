package payflow

import (
	"context"

	"payflow/internal/models"
)

type Gateway interface {
	Initiate(ctx context.Context, req models.PaymentRequest) (*models.InitiateResponse, error)
	CheckStatus(ctx context.Context, checkoutRequestID string) (*models.StatusResponse, error)
}

type ProgressIndicator interface {
	Show()
	Hide()
}

// Notifier shows a terminal outcome to the user. Notify may block until the
// user dismisses it.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Refresher reloads the surrounding billing state after a payment may have
// changed it.
type Refresher interface {
	Refresh(ctx context.Context, o Outcome) error
}

type OutcomeSink interface {
	Record(ctx context.Context, o Outcome)
}

// UI groups the user-facing collaborators of a flow. Nil members are
// replaced by no-ops.
type UI struct {
	Progress  ProgressIndicator
	Notifier  Notifier
	Refresher Refresher
}

type nopUI struct{}

func (nopUI) Show() {}
func (nopUI) Hide() {}
func (nopUI) Notify(context.Context, Notice) {}
func (nopUI) Refresh(context.Context, Outcome) error { return nil }
func (nopUI) Record(context.Context, Outcome) {}

func (u UI) withDefaults() UI {
	if u.Progress == nil {
		u.Progress = nopUI{}
	}
	if u.Notifier == nil {
		u.Notifier = nopUI{}
	}
	if u.Refresher == nil {
		u.Refresher = nopUI{}
	}
	return u
}
