// Package payments wraps the hosted checkout provider. The rest of the
// service talks to the Provider interface so tests can substitute fakes.
package payments

import (
	"context"
	"errors"
)

// ErrBadSignature indicates the webhook payload failed signature
// verification and must not be processed.
var ErrBadSignature = errors.New("webhook signature verification failed")

// Metadata keys set at session creation. The session metadata is the only
// channel correlating an asynchronous confirmation back to a purchase intent.
const (
	MetadataCourseID  = "courseId"
	MetadataAccountID = "accountId"
)

// CheckoutParams describes a hosted checkout session to be created.
type CheckoutParams struct {
	CourseID      string
	AccountID     string
	CustomerEmail string
	Name          string
	Description   string
	UnitAmount    int64 // minor currency units
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is the provider's handle on a created session.
type CheckoutSession struct {
	ID  string
	URL string
}

// CompletedSession carries the fields of a completed-checkout event the
// reconciler needs.
type CompletedSession struct {
	SessionID   string
	CourseID    string
	AccountID   string
	AmountTotal int64
}

// Event is a verified webhook event. Session is non-nil only for
// completed-checkout events; every other type is acknowledged and ignored.
type Event struct {
	ID      string
	Type    string
	Session *CompletedSession
}

// Provider exposes the two provider operations the service performs.
type Provider interface {
	// CreateCheckoutSession opens a hosted payment session. No local
	// state is written; the purchase is intended, not committed.
	CreateCheckoutSession(ctx context.Context, params *CheckoutParams) (*CheckoutSession, error)

	// ParseEvent verifies the raw webhook payload against the signing
	// secret before trusting any of its contents. Returns
	// ErrBadSignature on verification failure.
	ParseEvent(payload []byte, signature string) (*Event, error)
}
