package payflow

import (
	"errors"
	"time"

	"payflow/internal/models"
)

type State int

const (
	StateIdle State = iota
	StateInitiating
	StateAwaitingCallback
	StatePolling
	StateCompleted
	StateFailed
	StateTimedOut
	StateInitiationError
	// StateCancelled ends a flow that was superseded by a newer attempt or
	// whose context was cancelled. No notice is shown for it.
	StateCancelled
)

var stateNames = map[State]string{
	StateIdle:             "idle",
	StateInitiating:       "initiating",
	StateAwaitingCallback: "awaiting_callback",
	StatePolling:          "polling",
	StateCompleted:        "completed",
	StateFailed:           "failed",
	StateTimedOut:         "timed_out",
	StateInitiationError:  "initiation_error",
	StateCancelled:        "cancelled",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s State) Terminal() bool {
	return s >= StateCompleted
}

// refreshes reports whether reaching s reloads the billing view.
func (s State) refreshes() bool {
	return s == StateCompleted || s == StateTimedOut
}

var (
	ErrInitiation     = errors.New("payment initiation failed")
	ErrPaymentFailed  = errors.New("payment failed")
	ErrPaymentTimeout = errors.New("payment confirmation timed out")
	ErrSuperseded     = errors.New("superseded by a newer payment attempt")
	ErrClosed         = errors.New("payment coordinator closed")
)

const (
	msgPaid         = "Payment successful! Your subscription has been activated."
	msgActivated    = "Your subscription has been activated."
	msgFailed       = "Payment failed. Please try again."
	msgTimeout      = "Payment timeout. Please check your payment history."
	msgNetworkError = "An error occurred. Please try again."
)

// PollSession tracks the status checks made for one checkout request.
type PollSession struct {
	CorrelationID string
	Attempts      int
	MaxAttempts   int
	Interval      time.Duration
}

func (s PollSession) Exhausted() bool {
	return s.Attempts >= s.MaxAttempts
}

type Outcome struct {
	FlowID        string
	Tier          models.Tier
	State         State
	CorrelationID string
	Attempts      int
	Message       string
	Err           error
	Duration      time.Duration
}

type Notice struct {
	State   State
	Message string
}

// Success is true for notices that report an activated subscription.
func (n Notice) Success() bool {
	return n.State == StateCompleted
}
