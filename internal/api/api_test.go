package api_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volkanerene/chartizy-backend2/internal/account"
	"github.com/volkanerene/chartizy-backend2/internal/api"
	"github.com/volkanerene/chartizy-backend2/internal/billing"
	"github.com/volkanerene/chartizy-backend2/internal/chart"
	"github.com/volkanerene/chartizy-backend2/internal/genai"
	"github.com/volkanerene/chartizy-backend2/internal/identity"
	"github.com/volkanerene/chartizy-backend2/pkg/jwt"
)

const (
	testSigningKey    = "0123456789abcdef0123456789abcdef"
	testStripeSecret  = "whsec_test"
	testPayTRKey      = "merchant-key"
	testPayTRSalt     = "merchant-salt"
	testPayTRMerchant = "123456"
)

type stubIdentity struct {
	sessions  map[string]identity.Session // email -> session
	signinErr error
	signupErr error
}

func (s *stubIdentity) VerifyToken(context.Context, string) (identity.Claims, error) {
	// Force verification through the local signing key in tests.
	return identity.Claims{}, identity.ErrTokenRejected
}

func (s *stubIdentity) SignIn(_ context.Context, email, _ string) (identity.Session, error) {
	if s.signinErr != nil {
		return identity.Session{}, s.signinErr
	}
	sess, ok := s.sessions[email]
	if !ok {
		return identity.Session{}, identity.ErrInvalidCredentials
	}
	return sess, nil
}

func (s *stubIdentity) SignUp(_ context.Context, email, _ string) (identity.Session, error) {
	if s.signupErr != nil {
		return identity.Session{}, s.signupErr
	}
	sess, ok := s.sessions[email]
	if !ok {
		return identity.Session{}, identity.ErrSignUpFailed
	}
	return sess, nil
}

type stubAI struct{}

func (stubAI) AnalyzePrompt(context.Context, string) (*genai.PromptAnalysis, error) {
	return &genai.PromptAnalysis{
		Labels: []string{"Jan"}, Values: []float64{1},
		Title: "t", Description: "d", DataInterpretation: "i",
	}, nil
}

func (stubAI) GenerateData(context.Context, string, int, string) (*genai.DataSet, error) {
	return &genai.DataSet{Labels: []string{"Q1"}, Values: []float64{1}, Title: "q", SuggestedType: "bar"}, nil
}

func (stubAI) TranscribeAudio(context.Context, string, string) (string, error) {
	return "hello", nil
}

type stubGenerator struct{}

func (stubGenerator) GenerateChart(context.Context, string, map[string]any) (*genai.ChartResult, error) {
	return &genai.ChartResult{
		ChartConfig: map[string]any{"type": "bar"},
		JSX:         "export default function Chart() {}",
		Description: "a chart",
	}, nil
}

type fixture struct {
	router   http.Handler
	accounts *account.MemoryStore
	sessions *billing.MemorySessionStore
	identity *stubIdentity
	jwtSvc   *jwt.Service
}

func newFixture(t *testing.T, templates ...chart.Template) *fixture {
	t.Helper()

	jwtSvc, err := jwt.New(testSigningKey)
	require.NoError(t, err)

	accounts := account.NewMemoryStore()
	resolver := account.NewResolver(accounts, nil)
	idp := &stubIdentity{sessions: map[string]identity.Session{}}
	verifier := identity.NewVerifier(idp, jwtSvc, nil)

	sessions := billing.NewMemorySessionStore()
	manager := billing.NewManager(
		sessions,
		billing.NewReconciler(accounts, nil),
		billing.NewMemoryDeduper(),
		nil,
		billing.NewStripeProvider(billing.StripeConfig{SecretKey: "sk_test", WebhookSecret: testStripeSecret}),
		billing.NewPayTRProvider(billing.PayTRConfig{
			MerchantID: testPayTRMerchant, MerchantKey: testPayTRKey, MerchantSalt: testPayTRSalt,
		}),
	)

	charts := chart.NewMemoryStore()
	templateStore := chart.NewMemoryTemplateStore(templates...)
	service := chart.NewService(charts, templateStore, accounts, stubGenerator{}, nil)

	f := &fixture{
		accounts: accounts,
		sessions: sessions,
		identity: idp,
		jwtSvc:   jwtSvc,
	}
	f.router = api.NewRouter(api.Deps{
		Auth:      identity.NewMiddleware(verifier, resolver),
		Identity:  idp,
		Accounts:  accounts,
		Resolver:  resolver,
		Charts:    service,
		Templates: templateStore,
		Billing:   manager,
		AI:        stubAI{},
	})
	return f
}

func (f *fixture) token(t *testing.T, subjectID, email string) string {
	t.Helper()

	token, err := f.jwtSvc.Generate(jwt.Claims{
		Subject:   subjectID,
		Email:     email,
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	return token
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func TestAuthEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("login returns token and account snapshot", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.identity.sessions["jo@example.com"] = identity.Session{
			AccessToken: "provider-token",
			Claims:      identity.Claims{SubjectID: "user42", Email: "jo@example.com"},
		}

		rec := f.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "jo@example.com", "password": "secret",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, "provider-token", body["access_token"])
		assert.Equal(t, "user42", body["user_id"])
		assert.Equal(t, "free", body["subscription_tier"])

		// login auto-provisions the local account
		_, err := f.accounts.GetByID(context.Background(), "user42")
		require.NoError(t, err)
	})

	t.Run("login with wrong credentials", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "jo@example.com", "password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("login without body", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/auth/login", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("me requires a token", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := f.do(t, http.MethodGet, "/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = f.do(t, http.MethodGet, "/auth/me", "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("me auto-provisions on first sight", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := f.do(t, http.MethodGet, "/auth/me", f.token(t, "user42", "jo@example.com"), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, "user42", body["id"])
		assert.Equal(t, "jo@example.com", body["email"])
		assert.Equal(t, "free", body["subscription_tier"])
		assert.EqualValues(t, 0, body["chart_count"])
	})
}

func TestProfileUpdate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	token := f.token(t, "user42", "jo@example.com")

	rec := f.do(t, http.MethodPut, "/profile/update", token, map[string]string{
		"first_name": "Jo",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Jo", body["first_name"])

	// second partial update keeps the first name
	rec = f.do(t, http.MethodPut, "/profile/update", token, map[string]string{
		"last_name": "Doe",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "Jo", body["first_name"])
	assert.Equal(t, "Doe", body["last_name"])
}

func TestTemplateEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		chart.Template{ID: "tmpl-bar", Name: "Bar", ChartType: "bar"},
		chart.Template{ID: "tmpl-3d", Name: "Surface", ChartType: "3d-surface", IsPremium: true},
	)

	t.Run("list includes premium templates", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/templates/", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var out []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Len(t, out, 2)
	})

	t.Run("public excludes premium templates", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/templates/public", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var out []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Len(t, out, 1)
		assert.Equal(t, "Bar", out[0]["name"])
	})

	t.Run("get by id and miss", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/templates/tmpl-3d", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decodeBody(t, rec)["is_premium"])

		rec = f.do(t, http.MethodGet, "/templates/nope", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestChartEndpoints(t *testing.T) {
	t.Parallel()

	templates := []chart.Template{
		{ID: "tmpl-bar", Name: "Bar", ChartType: "bar"},
		{ID: "tmpl-3d", Name: "Surface", ChartType: "3d-surface", IsPremium: true},
	}

	t.Run("generate, fetch, delete round trip", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, templates...)
		token := f.token(t, "user42", "jo@example.com")

		rec := f.do(t, http.MethodPost, "/chart/generate", token, map[string]any{
			"template_id": "tmpl-bar",
			"data":        map[string]any{"values": []int{1, 2}},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		body := decodeBody(t, rec)
		chartID, _ := body["id"].(string)
		require.NotEmpty(t, chartID)
		assert.NotEmpty(t, body["jsx"])

		rec = f.do(t, http.MethodGet, "/chart/"+chartID, token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodGet, "/chart/user/user42", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var list []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Len(t, list, 1)

		rec = f.do(t, http.MethodDelete, "/chart/"+chartID, token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodGet, "/chart/"+chartID, token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("quota denial carries the upgrade message", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, templates...)
		token := f.token(t, "user42", "jo@example.com")

		// provision, then push the count to the limit
		require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/auth/me", token, nil).Code)
		require.NoError(t, f.accounts.UpdateChartCount(context.Background(), "user42", account.FreeChartLimit))

		rec := f.do(t, http.MethodPost, "/chart/generate", token, map[string]any{
			"template_id": "tmpl-bar",
			"data":        map[string]any{},
		})
		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "Upgrade to Pro")
	})

	t.Run("premium template requires pro", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, templates...)
		token := f.token(t, "user42", "jo@example.com")

		rec := f.do(t, http.MethodPost, "/chart/generate", token, map[string]any{
			"template_id": "tmpl-3d",
			"data":        map[string]any{},
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("foreign charts are invisible", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, templates...)
		owner := f.token(t, "owner", "owner@example.com")
		other := f.token(t, "other", "other@example.com")

		rec := f.do(t, http.MethodPost, "/chart/generate", owner, map[string]any{
			"template_id": "tmpl-bar",
			"data":        map[string]any{},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		chartID := decodeBody(t, rec)["id"].(string)

		assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/chart/user/owner", other, nil).Code)
		assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/chart/"+chartID, other, nil).Code)
		assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodDelete, "/chart/"+chartID, other, nil).Code)
	})

	t.Run("unauthenticated generation is rejected", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, templates...)
		rec := f.do(t, http.MethodPost, "/chart/generate", "", map[string]any{"template_id": "tmpl-bar"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAIEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/ai/analyze-prompt", "", map[string]string{"prompt": "sales"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])

	rec = f.do(t, http.MethodPost, "/ai/analyze-prompt", "", map[string]string{"prompt": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/ai/generate-data", "", map[string]any{"description": "quarterly"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/ai/transcribe-audio", "", map[string]string{
		"audio_base64": base64.StdEncoding.EncodeToString([]byte("audio")),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", decodeBody(t, rec)["text"])
}

func signStripe(payload []byte, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(testStripeSecret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeWebhook(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	// provision the account the event credits
	require.Equal(t, http.StatusOK,
		f.do(t, http.MethodGet, "/auth/me", f.token(t, "user42", "jo@example.com"), nil).Code)

	payload := []byte(`{
		"id": "evt_1",
		"api_version": "2024-06-20",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_123", "metadata": {"user_id": "user42"}}}
	}`)

	req := httptest.NewRequest(http.MethodPost, "/subscription/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signStripe(payload, time.Now()))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	a, err := f.accounts.GetByID(context.Background(), "user42")
	require.NoError(t, err)
	assert.Equal(t, account.TierPro, a.SubscriptionTier)

	// wrong signature never reaches the directory
	req = httptest.NewRequest(http.MethodPost, "/subscription/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func paytrForm(orderID, status, totalAmount string) url.Values {
	mac := hmac.New(sha256.New, []byte(testPayTRKey))
	mac.Write([]byte(orderID + testPayTRSalt + status + totalAmount))
	return url.Values{
		"merchant_oid": {orderID},
		"status":       {status},
		"total_amount": {totalAmount},
		"hash":         {base64.StdEncoding.EncodeToString(mac.Sum(nil))},
	}
}

func (f *fixture) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestPayTRCallback(t *testing.T) {
	t.Parallel()

	const orderID = "graphzy-user42-a1b2c3d4"

	seed := func(t *testing.T) *fixture {
		f := newFixture(t)
		require.Equal(t, http.StatusOK,
			f.do(t, http.MethodGet, "/auth/me", f.token(t, "user42", "jo@example.com"), nil).Code)
		require.NoError(t, f.sessions.Save(context.Background(), &billing.Session{
			OrderID: orderID, Provider: billing.ProviderLocalCard,
			SubjectID: "user42", AmountMinor: 999, Currency: "TRY",
			Status: billing.StatusCreated,
		}))
		return f
	}

	t.Run("verified success upgrades and replays are no-ops", func(t *testing.T) {
		t.Parallel()

		f := seed(t)
		form := paytrForm(orderID, "success", "999")

		for i := 0; i < 2; i++ {
			rec := f.postForm(t, "/payment/paytr-callback", form)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "success", decodeBody(t, rec)["status"])
		}

		a, err := f.accounts.GetByID(context.Background(), "user42")
		require.NoError(t, err)
		assert.Equal(t, account.TierPro, a.SubscriptionTier)
	})

	t.Run("bad hash is rejected", func(t *testing.T) {
		t.Parallel()

		f := seed(t)
		form := paytrForm(orderID, "success", "999")
		form.Set("hash", "bm90LXRoZS1oYXNo")

		rec := f.postForm(t, "/payment/paytr-callback", form)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid hash")

		a, err := f.accounts.GetByID(context.Background(), "user42")
		require.NoError(t, err)
		assert.Equal(t, account.TierFree, a.SubscriptionTier)
	})

	t.Run("missing parameter names the field", func(t *testing.T) {
		t.Parallel()

		f := seed(t)
		form := paytrForm(orderID, "success", "999")
		form.Del("total_amount")

		rec := f.postForm(t, "/payment/paytr-callback", form)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "total_amount")
	})

	t.Run("verified failure acknowledges with 200", func(t *testing.T) {
		t.Parallel()

		f := seed(t)
		rec := f.postForm(t, "/payment/paytr-callback", paytrForm(orderID, "failed", "999"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "failed", decodeBody(t, rec)["status"])

		a, err := f.accounts.GetByID(context.Background(), "user42")
		require.NoError(t, err)
		assert.Equal(t, account.TierFree, a.SubscriptionTier)
	})
}

func TestVerifyIAP(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	token := f.token(t, "user42", "jo@example.com")

	rec := f.do(t, http.MethodPost, "/subscription/verify-iap", token, map[string]string{
		"receipt": "receipt-data-0123456789", "platform": "ios",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pro", decodeBody(t, rec)["subscription_tier"])

	rec = f.do(t, http.MethodPost, "/subscription/verify-iap", token, map[string]string{
		"receipt": "short", "platform": "ios",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/", "", nil).Code)
}
