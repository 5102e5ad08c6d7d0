// Package billing owns the payment side of the subscription lifecycle:
// opening payment sessions with the supported providers, verifying
// inbound confirmations, and reconciling verified outcomes into the
// user directory.
package billing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// Provider names. They double as the provider column of the payment
// session record.
const (
	ProviderCheckout  = "checkout"   // Stripe hosted checkout
	ProviderRedirect  = "redirect"   // PayPal approve/capture
	ProviderLocalCard = "local_card" // PayTR signed form gateway
)

// Shape classifies the provider's integration contract, which dictates
// how its confirmations are trusted.
type Shape string

const (
	// ShapeHostedCheckout providers carry subject correlation in their
	// own session metadata; confirmation arrives as a signed webhook.
	ShapeHostedCheckout Shape = "hosted_checkout"
	// ShapeApproveCapture providers confirm through a separate capture
	// call made with a freshly obtained service credential.
	ShapeApproveCapture Shape = "approve_capture"
	// ShapeSignedFormCallback providers confirm through a form callback
	// authenticated by a shared-secret hash.
	ShapeSignedFormCallback Shape = "signed_form_callback"
)

var (
	ErrNotConfigured      = errors.New("billing: provider is not configured")
	ErrSessionNotFound    = errors.New("billing: payment session not found")
	ErrPaymentNotComplete = errors.New("billing: payment not completed")
	ErrSignatureMismatch  = errors.New("billing: confirmation signature mismatch")
	ErrMissingField       = errors.New("billing: missing required confirmation field")
)

// UpstreamError reports a provider call that failed with a non-2xx
// response. The provider's own error text is kept, truncated, for
// diagnosability.
type UpstreamError struct {
	Provider string
	Status   int
	Detail   string
}

func (e *UpstreamError) Error() string {
	detail := e.Detail
	const maxDetail = 200
	if len(detail) > maxDetail {
		detail = detail[:maxDetail]
	}
	return fmt.Sprintf("billing: %s returned %d: %s", e.Provider, e.Status, detail)
}

// SessionRequest is the input common to all session creation shapes.
// Providers ignore the fields their shape does not use.
type SessionRequest struct {
	SubjectID  string
	Email      string
	Amount     float64 // major currency units
	Currency   string
	SuccessURL string
	CancelURL  string // doubles as the fail URL for the form gateway
}

// SessionData is what the caller needs to complete payment out of band.
type SessionData struct {
	Provider    string
	OrderID     string
	RedirectURL string
}

// Confirmation is an inbound, untrusted message claiming a payment
// outcome. Exactly one of the carrier fields is set depending on the
// provider shape: webhook payload+signature, a capture order id, or
// callback form values.
type Confirmation struct {
	OrderID   string
	Payload   []byte
	Signature string
	Form      url.Values
}

// Outcome is the verified result of a confirmation. SubjectID may be
// empty when the provider does not carry correlation itself; the
// session store resolves it then. Completed false means the event was
// genuine but grants nothing (wrong event type, failed payment).
type Outcome struct {
	OrderID   string
	SubjectID string
	Completed bool
}

// Provider is the polymorphic payment capability. All three provider
// shapes share this contract so the HTTP layer never sees
// provider-specific plumbing.
type Provider interface {
	Name() string
	Shape() Shape

	// CreateSession opens a payment session and returns redirect data.
	CreateSession(ctx context.Context, req SessionRequest) (*SessionData, error)

	// ConfirmSession validates an inbound confirmation. It must not be
	// trusted to mutate anything before its verification succeeds.
	ConfirmSession(ctx context.Context, conf Confirmation) (*Outcome, error)
}
