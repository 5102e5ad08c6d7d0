package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

// StripeConfig is the environment-driven Stripe configuration.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	PriceID       string `env:"STRIPE_PRICE_ID"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
}

// StripeProvider is the hosted-checkout provider. Stripe carries the
// subject correlation itself: the checkout session's metadata holds the
// account id, so no local session record is required for this shape.
type StripeProvider struct {
	cfg StripeConfig
}

// NewStripeProvider configures the global Stripe client key and returns
// the provider. Missing secrets are tolerated at construction; the
// operations fail closed instead.
func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	if cfg.SecretKey != "" {
		stripe.Key = cfg.SecretKey
	}
	return &StripeProvider{cfg: cfg}
}

func (p *StripeProvider) Name() string { return ProviderCheckout }
func (p *StripeProvider) Shape() Shape { return ShapeHostedCheckout }

// CreateSession opens a hosted checkout session for the pro
// subscription price, tied to the account's email, with the account id
// in metadata for webhook correlation.
func (p *StripeProvider) CreateSession(ctx context.Context, req SessionRequest) (*SessionData, error) {
	if p.cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: STRIPE_SECRET_KEY is required", ErrNotConfigured)
	}
	if p.cfg.PriceID == "" {
		return nil, fmt.Errorf("%w: STRIPE_PRICE_ID is required", ErrNotConfigured)
	}

	params := &stripe.CheckoutSessionParams{
		Params:             stripe.Params{Context: ctx},
		CustomerEmail:      stripe.String(req.Email),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(p.cfg.PriceID),
			Quantity: stripe.Int64(1),
		}},
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.AddMetadata("user_id", req.SubjectID)

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("billing: create stripe checkout session: %w", err)
	}

	return &SessionData{
		Provider:    ProviderCheckout,
		OrderID:     sess.ID,
		RedirectURL: sess.URL,
	}, nil
}

// ConfirmSession verifies the webhook signature and, on a completed
// checkout, extracts the subject from the session metadata. Any other
// event type is a verified no-op.
func (p *StripeProvider) ConfirmSession(_ context.Context, conf Confirmation) (*Outcome, error) {
	if p.cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: STRIPE_WEBHOOK_SECRET is required", ErrNotConfigured)
	}

	event, err := webhook.ConstructEvent(conf.Payload, conf.Signature, p.cfg.WebhookSecret)
	if err != nil {
		return nil, errors.Join(ErrSignatureMismatch, err)
	}

	if event.Type != "checkout.session.completed" {
		return &Outcome{Completed: false}, nil
	}

	object := event.Data.Object
	var subjectID, orderID string
	if id, ok := object["id"].(string); ok {
		orderID = id
	}
	if metadata, ok := object["metadata"].(map[string]any); ok {
		subjectID, _ = metadata["user_id"].(string)
	}
	if subjectID == "" {
		return nil, fmt.Errorf("billing: stripe event %s has no user_id metadata", event.ID)
	}

	return &Outcome{
		OrderID:   orderID,
		SubjectID: subjectID,
		Completed: true,
	}, nil
}
