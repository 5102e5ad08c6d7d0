package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PayTRConfig is the environment-driven PayTR configuration. All three
// merchant secrets must be present for the gateway to operate.
type PayTRConfig struct {
	MerchantID   string `env:"PAYTR_MERCHANT_ID"`
	MerchantKey  string `env:"PAYTR_MERCHANT_KEY"`
	MerchantSalt string `env:"PAYTR_MERCHANT_SALT"`
	Mode         string `env:"PAYTR_MODE" envDefault:"test"`
}

const (
	paytrLiveTokenURL = "https://www.paytr.com/odeme/api/get-token"
	paytrTestTokenURL = "https://www.paytr.com/odeme/test/get-token"

	paytrLivePayURL = "https://www.paytr.com/odeme/guvenli/"
	paytrTestPayURL = "https://www.paytr.com/odeme/test/guvenli/"

	// orderPrefix is the first segment of the merchant order id; the
	// subject id sits in the second dash-delimited segment so the
	// callback can select which account to credit after the hash has
	// been verified.
	orderPrefix = "graphzy"
)

// PayTRProvider implements the signed-form gateway shape. This is the
// one integration where confirmation authenticity is enforced
// cryptographically end to end; the hash check must never be weakened.
type PayTRProvider struct {
	cfg        PayTRConfig
	tokenURL   string
	httpClient *http.Client
}

// PayTROption adjusts provider construction.
type PayTROption func(*PayTRProvider)

// WithPayTREndpoint overrides the token endpoint, e.g. for tests
// against a stub server.
func WithPayTREndpoint(tokenURL string) PayTROption {
	return func(p *PayTRProvider) { p.tokenURL = tokenURL }
}

// NewPayTRProvider returns the provider. Missing secrets are tolerated
// at construction; the operations fail closed instead.
func NewPayTRProvider(cfg PayTRConfig, opts ...PayTROption) *PayTRProvider {
	tokenURL := paytrTestTokenURL
	if strings.EqualFold(cfg.Mode, "live") {
		tokenURL = paytrLiveTokenURL
	}
	p := &PayTRProvider{
		cfg:      cfg,
		tokenURL: tokenURL,
		// The gateway is slow to mint tokens under load; 30s matches
		// its documented worst case.
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PayTRProvider) Name() string { return ProviderLocalCard }
func (p *PayTRProvider) Shape() Shape { return ShapeSignedFormCallback }

func (p *PayTRProvider) configured() bool {
	return p.cfg.MerchantID != "" && p.cfg.MerchantKey != "" && p.cfg.MerchantSalt != ""
}

func (p *PayTRProvider) testMode() string {
	if strings.EqualFold(p.cfg.Mode, "live") {
		return "0"
	}
	return "1"
}

// CreateSession requests a payment token from the gateway and returns
// the redirect URL built from it.
func (p *PayTRProvider) CreateSession(ctx context.Context, req SessionRequest) (*SessionData, error) {
	if !p.configured() {
		return nil, fmt.Errorf("%w: PAYTR_MERCHANT_ID, PAYTR_MERCHANT_KEY and PAYTR_MERCHANT_SALT are required", ErrNotConfigured)
	}

	orderID := fmt.Sprintf("%s-%s-%s", orderPrefix, req.SubjectID, uuid.NewString()[:8])
	amountKurus := int64(req.Amount * 100)

	basket, err := json.Marshal([][]any{{"Graphzy Pro Subscription", req.Amount, 1}})
	if err != nil {
		return nil, fmt.Errorf("billing: marshal paytr basket: %w", err)
	}
	basketB64 := base64.StdEncoding.EncodeToString(basket)

	// Token input order is fixed by the gateway: merchant_id, salt,
	// order id, email, amount, basket, no_installment, max_installment,
	// test_mode.
	token := p.signToken(
		p.cfg.MerchantID + p.cfg.MerchantSalt + orderID + req.Email +
			strconv.FormatInt(amountKurus, 10) + basketB64 + "0" + "0" + p.testMode(),
	)

	form := url.Values{
		"merchant_id":     {p.cfg.MerchantID},
		"user_ip":         {"127.0.0.1"},
		"merchant_oid":    {orderID},
		"email":           {req.Email},
		"payment_amount":  {strconv.FormatInt(amountKurus, 10)},
		"paytr_token":     {token},
		"user_basket":     {basketB64},
		"no_installment":  {"0"},
		"max_installment": {"0"},
		"currency":        {"TL"},
		"test_mode":       {p.testMode()},
		"lang":            {"tr"},
		"success_url":     {req.SuccessURL},
		"fail_url":        {req.CancelURL},
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("billing: build paytr request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("billing: paytr get-token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{Provider: "paytr", Status: resp.StatusCode, Detail: string(detail)}
	}

	var result struct {
		Status string `json:"status"`
		Token  string `json:"token"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("billing: decode paytr response: %w", err)
	}

	if result.Status != "success" {
		return nil, &UpstreamError{Provider: "paytr", Status: resp.StatusCode, Detail: result.Reason}
	}

	payURL := paytrTestPayURL
	if strings.EqualFold(p.cfg.Mode, "live") {
		payURL = paytrLivePayURL
	}

	return &SessionData{
		Provider:    ProviderLocalCard,
		OrderID:     orderID,
		RedirectURL: payURL + result.Token,
	}, nil
}

// ConfirmSession validates the gateway's form callback. The four
// required fields must be present and the hash must match byte for byte
// before anything in the payload is believed.
func (p *PayTRProvider) ConfirmSession(_ context.Context, conf Confirmation) (*Outcome, error) {
	if !p.configured() {
		return nil, fmt.Errorf("%w: PAYTR_MERCHANT_KEY and PAYTR_MERCHANT_SALT are required", ErrNotConfigured)
	}

	for _, field := range []string{"merchant_oid", "status", "total_amount", "hash"} {
		if conf.Form.Get(field) == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, field)
		}
	}

	merchantOID := conf.Form.Get("merchant_oid")
	status := conf.Form.Get("status")
	totalAmount := conf.Form.Get("total_amount")
	suppliedHash := conf.Form.Get("hash")

	expected := p.signToken(merchantOID + p.cfg.MerchantSalt + status + totalAmount)
	if !hmac.Equal([]byte(expected), []byte(suppliedHash)) {
		return nil, ErrSignatureMismatch
	}

	if status != "success" {
		// The gateway expects a 200 acknowledgment even for failed
		// payments; a verified failure grants nothing.
		return &Outcome{OrderID: merchantOID, Completed: false}, nil
	}

	// The subject id is the second dash-delimited segment of the order
	// id. It only selects which account to credit; authorization came
	// from the hash check above.
	subjectID := subjectFromOrderID(merchantOID)
	if subjectID == "" {
		return nil, fmt.Errorf("billing: cannot extract subject from order id %q", merchantOID)
	}

	return &Outcome{
		OrderID:   merchantOID,
		SubjectID: subjectID,
		Completed: true,
	}, nil
}

func (p *PayTRProvider) signToken(input string) string {
	mac := hmac.New(sha256.New, []byte(p.cfg.MerchantKey))
	mac.Write([]byte(input))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func subjectFromOrderID(orderID string) string {
	parts := strings.Split(orderID, "-")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
