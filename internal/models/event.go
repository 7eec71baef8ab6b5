package models

import "time"

const (
	EventPaymentOutcome = "payment.outcome"
	EventBillingRefresh = "billing.refresh"
)

type FlowEvent struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	FlowID        string    `json:"flow_id"`
	CorrelationID string    `json:"checkout_request_id,omitempty"`
	Tier          Tier      `json:"tier"`
	State         string    `json:"state"`
	Attempts      int       `json:"attempts"`
	Message       string    `json:"message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
