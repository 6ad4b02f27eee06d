// Package payment talks to the external payment provider that hosts checkout pages.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnavailable means the provider could not be reached in time. Callers may retry.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrSignature means a webhook payload failed authenticity checks.
	ErrSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent means an authentic event could not be decoded. Redelivery won't help.
	ErrMalformedEvent = errors.New("malformed webhook event")
)

// PaymentStatus is the provider's view of whether a session has been paid.
type PaymentStatus string

const (
	StatusPaid              PaymentStatus = "paid"
	StatusUnpaid            PaymentStatus = "unpaid"
	StatusNoPaymentRequired PaymentStatus = "no_payment_required"
)

// Event types that carry a checkout session.
const (
	EventCheckoutCompleted             = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

// LineItem is one priced line on a checkout session.
type LineItem struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int64
	ImageURL  string
}

// SessionRequest describes the checkout session to create.
type SessionRequest struct {
	LineItems       []LineItem
	SuccessURL      string
	CancelURL       string
	ClientReference string
	Metadata        map[string]string
}

// Session is a provider checkout session.
type Session struct {
	ID            string
	URL           string
	PaymentStatus PaymentStatus
	CustomerEmail string
}

// IsPaid reports whether the provider considers the session settled.
func (s *Session) IsPaid() bool {
	return s != nil && s.PaymentStatus == StatusPaid
}

// Event is a verified provider webhook event. Session is set for checkout.session.* events.
type Event struct {
	ID      string
	Type    string
	Session *Session
}

// Gateway is the payment provider collaborator.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	RetrieveSession(ctx context.Context, id string) (*Session, error)
	VerifyEvent(payload []byte, signatureHeader string) (*Event, error)
}
