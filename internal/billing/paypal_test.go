package billing_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volkanerene/chartizy-backend2/internal/billing"
)

func paypalTestConfig() billing.PayPalConfig {
	return billing.PayPalConfig{
		ClientID:      "client-id",
		Secret:        "client-secret",
		Mode:          "sandbox",
		WebhookSecret: "webhook-secret",
	}
}

// paypalStub serves the token exchange plus order create/capture.
func paypalStub(t *testing.T, captureStatus string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-test","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("POST /v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CAPTURE", body["intent"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "ORDER-1",
			"status": "CREATED",
			"links": []map[string]string{
				{"rel": "self", "href": "https://example.com/self"},
				{"rel": "approve", "href": "https://example.com/approve/ORDER-1"},
			},
		})
	})
	mux.HandleFunc("POST /v2/checkout/orders/{id}/capture", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id":     r.PathValue("id"),
			"status": captureStatus,
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func signPayPalEvent(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPayPalProvider_CreateSession(t *testing.T) {
	t.Parallel()

	srv := paypalStub(t, "COMPLETED")
	p := billing.NewPayPalProvider(paypalTestConfig(), billing.WithPayPalEndpoint(srv.URL))

	data, err := p.CreateSession(context.Background(), billing.SessionRequest{
		SubjectID:  "user42",
		Email:      "jo@example.com",
		Amount:     9.99,
		Currency:   "USD",
		SuccessURL: "https://app.example.com/ok",
		CancelURL:  "https://app.example.com/no",
	})
	require.NoError(t, err)

	assert.Equal(t, billing.ProviderRedirect, data.Provider)
	assert.Equal(t, "ORDER-1", data.OrderID)
	assert.Equal(t, "https://example.com/approve/ORDER-1", data.RedirectURL)
}

func TestPayPalProvider_Capture(t *testing.T) {
	t.Parallel()

	t.Run("completed capture grants", func(t *testing.T) {
		t.Parallel()

		srv := paypalStub(t, "COMPLETED")
		p := billing.NewPayPalProvider(paypalTestConfig(), billing.WithPayPalEndpoint(srv.URL))

		out, err := p.ConfirmSession(context.Background(), billing.Confirmation{OrderID: "ORDER-1"})
		require.NoError(t, err)
		assert.True(t, out.Completed)
		assert.Equal(t, "ORDER-1", out.OrderID)
	})

	t.Run("non-completed capture grants nothing", func(t *testing.T) {
		t.Parallel()

		srv := paypalStub(t, "PENDING")
		p := billing.NewPayPalProvider(paypalTestConfig(), billing.WithPayPalEndpoint(srv.URL))

		_, err := p.ConfirmSession(context.Background(), billing.Confirmation{OrderID: "ORDER-1"})
		require.ErrorIs(t, err, billing.ErrPaymentNotComplete)
	})

	t.Run("missing order id", func(t *testing.T) {
		t.Parallel()

		srv := paypalStub(t, "COMPLETED")
		p := billing.NewPayPalProvider(paypalTestConfig(), billing.WithPayPalEndpoint(srv.URL))

		_, err := p.ConfirmSession(context.Background(), billing.Confirmation{})
		require.ErrorIs(t, err, billing.ErrMissingField)
	})

	t.Run("missing credentials fail closed", func(t *testing.T) {
		t.Parallel()

		p := billing.NewPayPalProvider(billing.PayPalConfig{})
		_, err := p.ConfirmSession(context.Background(), billing.Confirmation{OrderID: "ORDER-1"})
		require.ErrorIs(t, err, billing.ErrNotConfigured)
	})
}

func TestPayPalProvider_Webhook(t *testing.T) {
	t.Parallel()

	cfg := paypalTestConfig()
	p := billing.NewPayPalProvider(cfg)

	event := []byte(`{
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {
			"supplementary_data": {"related_ids": {"order_id": "ORDER-7"}}
		}
	}`)

	t.Run("signed capture event resolves the order", func(t *testing.T) {
		t.Parallel()

		out, err := p.ConfirmSession(context.Background(), billing.Confirmation{
			Payload:   event,
			Signature: signPayPalEvent(cfg.WebhookSecret, event),
		})
		require.NoError(t, err)
		assert.True(t, out.Completed)
		assert.Equal(t, "ORDER-7", out.OrderID)
		assert.Empty(t, out.SubjectID, "subject resolution belongs to the session store")
	})

	t.Run("bad signature is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := p.ConfirmSession(context.Background(), billing.Confirmation{
			Payload:   event,
			Signature: signPayPalEvent("wrong-secret", event),
		})
		require.ErrorIs(t, err, billing.ErrSignatureMismatch)
	})

	t.Run("other event types are verified no-ops", func(t *testing.T) {
		t.Parallel()

		other := []byte(`{"event_type": "PAYMENT.CAPTURE.DENIED"}`)
		out, err := p.ConfirmSession(context.Background(), billing.Confirmation{
			Payload:   other,
			Signature: signPayPalEvent(cfg.WebhookSecret, other),
		})
		require.NoError(t, err)
		assert.False(t, out.Completed)
	})
}
