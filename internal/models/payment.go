package models

import "strings"

type PaymentMethod string

const (
	MethodTill    PaymentMethod = "till"
	MethodPaybill PaymentMethod = "paybill"
)

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusCompleted PaymentStatus = "completed"
	StatusFailed    PaymentStatus = "failed"
)

// Terminal reports whether the gateway will not change the status again.
// Unknown values are treated as still pending.
func (s PaymentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// PaymentRequest is built from the selection form at submission time and is
// passed by value from then on.
type PaymentRequest struct {
	Tier        Tier          `json:"tier" validate:"required"`
	Method      PaymentMethod `json:"payment_type" validate:"required,oneof=till paybill"`
	PhoneNumber string        `json:"phone_number" validate:"required"`
}

// Normalized trims surrounding whitespace from every field.
func (r PaymentRequest) Normalized() PaymentRequest {
	return PaymentRequest{
		Tier:        Tier(strings.TrimSpace(string(r.Tier))),
		Method:      PaymentMethod(strings.TrimSpace(string(r.Method))),
		PhoneNumber: strings.TrimSpace(r.PhoneNumber),
	}
}

type InitiateResponse struct {
	Success           bool   `json:"success"`
	CheckoutRequestID string `json:"checkout_request_id,omitempty"`
	Message           string `json:"message,omitempty"`
	Error             string `json:"error,omitempty"`
}

type StatusResponse struct {
	Status PaymentStatus `json:"status"`
}

type ToggleResponse struct {
	Success   bool   `json:"success"`
	AutoRenew *bool  `json:"auto_renew,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}
