package billing

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// PayPalConfig is the environment-driven PayPal configuration.
type PayPalConfig struct {
	ClientID      string `env:"PAYPAL_CLIENT_ID"`
	Secret        string `env:"PAYPAL_SECRET"`
	Mode          string `env:"PAYPAL_MODE" envDefault:"sandbox"`
	WebhookSecret string `env:"PAYPAL_WEBHOOK_SECRET"`
}

const (
	paypalSandboxURL = "https://api.sandbox.paypal.com"
	paypalLiveURL    = "https://api.paypal.com"
)

// PayPalProvider implements the approve/capture shape. Order creation
// and capture authenticate through a client-credentials exchange; trust
// at capture time derives from that freshly obtained credential, not
// from payload authenticity. Webhook confirmations are additionally
// verified against the configured webhook secret.
type PayPalProvider struct {
	cfg     PayPalConfig
	baseURL string
	creds   *clientcredentials.Config
}

// PayPalOption adjusts provider construction.
type PayPalOption func(*PayPalProvider)

// WithPayPalEndpoint overrides the API base URL, e.g. for tests against
// a stub server.
func WithPayPalEndpoint(baseURL string) PayPalOption {
	return func(p *PayPalProvider) {
		p.baseURL = strings.TrimRight(baseURL, "/")
		p.creds.TokenURL = p.baseURL + "/v1/oauth2/token"
	}
}

// NewPayPalProvider returns the provider. Missing secrets are tolerated
// at construction; the operations fail closed instead.
func NewPayPalProvider(cfg PayPalConfig, opts ...PayPalOption) *PayPalProvider {
	baseURL := paypalSandboxURL
	if strings.EqualFold(cfg.Mode, "live") {
		baseURL = paypalLiveURL
	}
	p := &PayPalProvider{
		cfg:     cfg,
		baseURL: baseURL,
		creds: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.Secret,
			TokenURL:     baseURL + "/v1/oauth2/token",
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PayPalProvider) Name() string { return ProviderRedirect }
func (p *PayPalProvider) Shape() Shape { return ShapeApproveCapture }

type paypalOrder struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
}

// CreateSession obtains a service credential, creates an order for the
// requested amount, and returns the approve link the caller redirects
// to. Nothing is granted until a later capture reports COMPLETED.
func (p *PayPalProvider) CreateSession(ctx context.Context, req SessionRequest) (*SessionData, error) {
	if p.cfg.ClientID == "" || p.cfg.Secret == "" {
		return nil, fmt.Errorf("%w: PAYPAL_CLIENT_ID and PAYPAL_SECRET are required", ErrNotConfigured)
	}

	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"amount": map[string]string{
				"currency_code": req.Currency,
				"value":         fmt.Sprintf("%.2f", req.Amount),
			},
			"description": "Graphzy Pro Subscription",
		}},
		"application_context": map[string]string{
			"brand_name":   "Graphzy",
			"landing_page": "BILLING",
			"user_action":  "PAY_NOW",
			"return_url":   req.SuccessURL,
			"cancel_url":   req.CancelURL,
		},
	}

	var order paypalOrder
	if err := p.call(ctx, http.MethodPost, "/v2/checkout/orders", body, http.StatusCreated, &order); err != nil {
		return nil, err
	}

	approvalURL := ""
	for _, link := range order.Links {
		if link.Rel == "approve" {
			approvalURL = link.Href
			break
		}
	}
	if approvalURL == "" {
		return nil, fmt.Errorf("billing: paypal order %s has no approve link", order.ID)
	}

	return &SessionData{
		Provider:    ProviderRedirect,
		OrderID:     order.ID,
		RedirectURL: approvalURL,
	}, nil
}

// ConfirmSession handles both confirmation paths of this shape: a
// capture request by order id, or a signed webhook event.
func (p *PayPalProvider) ConfirmSession(ctx context.Context, conf Confirmation) (*Outcome, error) {
	if len(conf.Payload) > 0 {
		return p.confirmWebhook(conf)
	}
	return p.capture(ctx, conf.OrderID)
}

// capture re-authenticates and captures the approved order. Only a
// COMPLETED status grants anything.
func (p *PayPalProvider) capture(ctx context.Context, orderID string) (*Outcome, error) {
	if p.cfg.ClientID == "" || p.cfg.Secret == "" {
		return nil, fmt.Errorf("%w: PAYPAL_CLIENT_ID and PAYPAL_SECRET are required", ErrNotConfigured)
	}
	if orderID == "" {
		return nil, fmt.Errorf("%w: order_id", ErrMissingField)
	}

	var captured paypalOrder
	path := "/v2/checkout/orders/" + orderID + "/capture"
	if err := p.call(ctx, http.MethodPost, path, struct{}{}, http.StatusCreated, &captured); err != nil {
		return nil, err
	}

	if captured.Status != "COMPLETED" {
		return nil, fmt.Errorf("%w: paypal capture status %s", ErrPaymentNotComplete, captured.Status)
	}

	return &Outcome{OrderID: orderID, Completed: true}, nil
}

type paypalWebhookEvent struct {
	EventType string `json:"event_type"`
	Resource  struct {
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

// confirmWebhook verifies the event signature before reading anything
// from the payload: hex HMAC-SHA256 of the raw body under the webhook
// secret, compared in constant time. Subject resolution happens in the
// manager via the session store, since the event only names the order.
func (p *PayPalProvider) confirmWebhook(conf Confirmation) (*Outcome, error) {
	if p.cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: PAYPAL_WEBHOOK_SECRET is required", ErrNotConfigured)
	}

	mac := hmac.New(sha256.New, []byte(p.cfg.WebhookSecret))
	mac.Write(conf.Payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(conf.Signature)) {
		return nil, ErrSignatureMismatch
	}

	var event paypalWebhookEvent
	if err := json.Unmarshal(conf.Payload, &event); err != nil {
		return nil, fmt.Errorf("billing: decode paypal event: %w", err)
	}

	if event.EventType != "PAYMENT.CAPTURE.COMPLETED" {
		return &Outcome{Completed: false}, nil
	}

	orderID := event.Resource.SupplementaryData.RelatedIDs.OrderID
	if orderID == "" {
		return nil, fmt.Errorf("billing: paypal capture event has no order id")
	}

	return &Outcome{OrderID: orderID, Completed: true}, nil
}

func (p *PayPalProvider) call(ctx context.Context, method, path string, body any, wantStatus int, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("billing: marshal paypal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("billing: build paypal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// The oauth2 client fetches and caches the access token, refreshing
	// it when expired.
	client := p.creds.Client(ctx)
	client.Timeout = 30 * time.Second

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("billing: paypal %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpstreamError{
			Provider: "paypal",
			Status:   resp.StatusCode,
			Detail:   string(detail),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("billing: decode paypal response: %w", err)
	}
	return nil
}
