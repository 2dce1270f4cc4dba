package domain

import "time"

// Payment providers accepted at checkout. The tag is advisory and is not
// checked against the number range.
const (
	ProviderMTN    = "mtn"
	ProviderAirtel = "airtel"
)

// Subscription is the single access record kept per user. Each purchase
// overwrites it.
type Subscription struct {
	UserID                string    `json:"userId"`
	PlanID                string    `json:"planId"`
	PlanName              string    `json:"planName"`
	Amount                int64     `json:"amount"`
	PhoneNumber           string    `json:"phoneNumber"`
	PaymentProvider       string    `json:"paymentProvider"`
	PaymentReference      string    `json:"paymentReference"`
	InternalReference     string    `json:"internalReference"`
	CustomerReference     string    `json:"customerReference,omitempty"`
	ProviderTransactionID string    `json:"providerTransactionId"`
	StartDate             time.Time `json:"startDate"`
	EndDate               time.Time `json:"endDate"`
	Active                bool      `json:"active"`
	CreatedAt             time.Time `json:"createdAt"`
}

// EndDateFor returns start plus the plan's validity, in whole 24h days.
func EndDateFor(start time.Time, plan Plan) time.Time {
	return start.Add(time.Duration(plan.ValidityDays) * 24 * time.Hour)
}

// IsActiveAt reports whether the subscription still grants access at now.
func (s *Subscription) IsActiveAt(now time.Time) bool {
	return s.EndDate.After(now)
}

// SubscribeRequest is the validated checkout input.
type SubscribeRequest struct {
	PlanID      string `json:"planId" validate:"required"`
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	Provider    string `json:"provider" validate:"required,oneof=mtn airtel"`
}

// SubscribeResult is returned after a confirmed and settled payment.
type SubscribeResult struct {
	Success           bool          `json:"success"`
	Message           string        `json:"message"`
	PlanName          string        `json:"planName"`
	InternalReference string        `json:"internalReference"`
	Subscription      *Subscription `json:"subscription"`
}

// SubscriptionStatus is the read model returned by status checks.
type SubscriptionStatus struct {
	Active       bool          `json:"active"`
	Subscription *Subscription `json:"subscription,omitempty"`
}
