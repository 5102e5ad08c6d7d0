package billing_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volkanerene/chartizy-backend2/internal/billing"
)

const stripeWebhookSecret = "whsec_test"

// signStripePayload builds the Stripe-Signature header value for the
// payload: a timestamp and the v1 scheme HMAC over "<t>.<payload>".
func signStripePayload(secret string, payload []byte, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeProvider_ConfirmSession(t *testing.T) {
	t.Parallel()

	p := billing.NewStripeProvider(billing.StripeConfig{
		SecretKey:     "sk_test",
		PriceID:       "price_test",
		WebhookSecret: stripeWebhookSecret,
	})

	completed := []byte(`{
		"id": "evt_1",
		"api_version": "2024-06-20",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_123", "metadata": {"user_id": "user42"}}}
	}`)

	t.Run("completed checkout resolves the subject from metadata", func(t *testing.T) {
		t.Parallel()

		out, err := p.ConfirmSession(context.Background(), billing.Confirmation{
			Payload:   completed,
			Signature: signStripePayload(stripeWebhookSecret, completed, time.Now()),
		})
		require.NoError(t, err)
		assert.True(t, out.Completed)
		assert.Equal(t, "cs_123", out.OrderID)
		assert.Equal(t, "user42", out.SubjectID)
	})

	t.Run("bad signature is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := p.ConfirmSession(context.Background(), billing.Confirmation{
			Payload:   completed,
			Signature: signStripePayload("whsec_other", completed, time.Now()),
		})
		require.ErrorIs(t, err, billing.ErrSignatureMismatch)
	})

	t.Run("stale timestamp is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := p.ConfirmSession(context.Background(), billing.Confirmation{
			Payload:   completed,
			Signature: signStripePayload(stripeWebhookSecret, completed, time.Now().Add(-time.Hour)),
		})
		require.ErrorIs(t, err, billing.ErrSignatureMismatch)
	})

	t.Run("other event types are verified no-ops", func(t *testing.T) {
		t.Parallel()

		other := []byte(`{"id": "evt_2", "api_version": "2024-06-20", "type": "invoice.paid", "data": {"object": {}}}`)
		out, err := p.ConfirmSession(context.Background(), billing.Confirmation{
			Payload:   other,
			Signature: signStripePayload(stripeWebhookSecret, other, time.Now()),
		})
		require.NoError(t, err)
		assert.False(t, out.Completed)
	})

	t.Run("completed checkout without metadata is an error", func(t *testing.T) {
		t.Parallel()

		bare := []byte(`{"id": "evt_3", "api_version": "2024-06-20", "type": "checkout.session.completed", "data": {"object": {"id": "cs_9"}}}`)
		_, err := p.ConfirmSession(context.Background(), billing.Confirmation{
			Payload:   bare,
			Signature: signStripePayload(stripeWebhookSecret, bare, time.Now()),
		})
		require.Error(t, err)
	})

	t.Run("missing webhook secret fails closed", func(t *testing.T) {
		t.Parallel()

		unconfigured := billing.NewStripeProvider(billing.StripeConfig{SecretKey: "sk_test"})
		_, err := unconfigured.ConfirmSession(context.Background(), billing.Confirmation{Payload: completed})
		require.ErrorIs(t, err, billing.ErrNotConfigured)
	})
}
