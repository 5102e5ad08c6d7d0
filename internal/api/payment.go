package api

import (
	"errors"
	"io"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/volkanerene/chartizy-backend2/internal/billing"
	"github.com/volkanerene/chartizy-backend2/internal/httpx"
	"github.com/volkanerene/chartizy-backend2/internal/identity"
)

type createPaymentRequest struct {
	SuccessURL string  `json:"success_url"`
	CancelURL  string  `json:"cancel_url"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency,omitempty"`
}

type capturePaymentRequest struct {
	OrderID string `json:"order_id"`
}

type createPayTRRequest struct {
	SuccessURL string  `json:"success_url"`
	FailURL    string  `json:"fail_url"`
	Amount     float64 `json:"amount"`
	UserID     string  `json:"user_id,omitempty"` // legacy field, the token wins
}

// maxWebhookBody bounds inbound confirmation payloads.
const maxWebhookBody = 1 << 20

func paymentRouter(deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.RequireAuth)

		r.Post("/create-paypal-session", func(w http.ResponseWriter, req *http.Request) {
			a := identity.CurrentAccount(req.Context())

			var in createPaymentRequest
			if err := httpx.Decode(req, &in); err != nil {
				httpx.JSONError(w, err)
				return
			}
			if in.Amount <= 0 {
				httpx.JSONError(w, httpx.ErrBadRequest.WithMessage("amount must be positive"))
				return
			}
			currency := in.Currency
			if currency == "" {
				currency = "USD"
			}

			data, err := deps.Billing.CreateSession(req.Context(), billing.ProviderRedirect, billing.SessionRequest{
				SubjectID:  a.ID,
				Email:      a.Email,
				Amount:     in.Amount,
				Currency:   currency,
				SuccessURL: in.SuccessURL,
				CancelURL:  in.CancelURL,
			})
			if err != nil {
				httpx.JSONError(w, mapBillingErr("paypal", err))
				return
			}

			httpx.JSON(w, http.StatusOK, map[string]string{
				"order_id":     data.OrderID,
				"approval_url": data.RedirectURL,
			})
		})

		r.Post("/capture-paypal-payment", func(w http.ResponseWriter, req *http.Request) {
			var in capturePaymentRequest
			if err := httpx.Decode(req, &in); err != nil {
				httpx.JSONError(w, err)
				return
			}
			if in.OrderID == "" {
				httpx.JSONError(w, httpx.ErrBadRequest.WithMessage("order_id is required"))
				return
			}

			out, err := deps.Billing.Confirm(req.Context(), billing.ProviderRedirect, billing.Confirmation{
				OrderID: in.OrderID,
			})
			if err != nil {
				httpx.JSONError(w, mapBillingErr("paypal", err))
				return
			}

			httpx.JSON(w, http.StatusOK, map[string]any{
				"success":  true,
				"order_id": out.OrderID,
				"status":   "completed",
			})
		})

		r.Post("/create-paytr-session", func(w http.ResponseWriter, req *http.Request) {
			a := identity.CurrentAccount(req.Context())

			var in createPayTRRequest
			if err := httpx.Decode(req, &in); err != nil {
				httpx.JSONError(w, err)
				return
			}
			if in.Amount <= 0 {
				httpx.JSONError(w, httpx.ErrBadRequest.WithMessage("amount must be positive"))
				return
			}

			data, err := deps.Billing.CreateSession(req.Context(), billing.ProviderLocalCard, billing.SessionRequest{
				SubjectID:  a.ID,
				Email:      a.Email,
				Amount:     in.Amount,
				Currency:   "TRY",
				SuccessURL: in.SuccessURL,
				CancelURL:  in.FailURL,
			})
			if err != nil {
				httpx.JSONError(w, mapBillingErr("paytr", err))
				return
			}

			httpx.JSON(w, http.StatusOK, map[string]any{
				"success":      true,
				"order_id":     data.OrderID,
				"iframe_url":   path.Base(data.RedirectURL),
				"redirect_url": data.RedirectURL,
			})
		})
	})

	// PayPal calls this; trust comes from the HMAC over the raw body,
	// not from any bearer token.
	r.Post("/webhook", func(w http.ResponseWriter, req *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(req.Body, maxWebhookBody))
		if err != nil {
			httpx.JSONError(w, httpx.ErrBadRequest.WithMessage("cannot read payload"))
			return
		}

		_, err = deps.Billing.Confirm(req.Context(), billing.ProviderRedirect, billing.Confirmation{
			Payload:   payload,
			Signature: req.Header.Get("Paypal-Transmission-Sig"),
		})
		if err != nil {
			httpx.JSONError(w, mapBillingErr("paypal", err))
			return
		}

		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// PayTR posts form values here. The gateway retries on any non-200,
	// so verified failed payments still acknowledge with 200.
	r.Post("/paytr-callback", func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseForm(); err != nil {
			httpx.JSONError(w, httpx.ErrBadRequest.WithMessage("cannot parse form"))
			return
		}

		out, err := deps.Billing.Confirm(req.Context(), billing.ProviderLocalCard, billing.Confirmation{
			Form: req.PostForm,
		})
		if err != nil {
			if errors.Is(err, billing.ErrSignatureMismatch) {
				// PayTR's merchant panel matches on this exact string.
				httpx.JSONError(w, httpx.ErrBadRequest.WithMessage("invalid hash"))
				return
			}
			httpx.JSONError(w, mapBillingErr("paytr", err))
			return
		}

		if !out.Completed {
			httpx.JSON(w, http.StatusOK, map[string]string{
				"status":  "failed",
				"message": "Payment failed",
			})
			return
		}

		httpx.JSON(w, http.StatusOK, map[string]string{
			"status":  "success",
			"message": "Payment completed and subscription updated",
		})
	})

	return r
}

func mapBillingErr(provider string, err error) error {
	var upstream *billing.UpstreamError
	switch {
	case errors.Is(err, billing.ErrNotConfigured):
		return httpx.ErrMisconfigured.WithMessage("%s is not configured", provider)
	case errors.Is(err, billing.ErrSignatureMismatch):
		return httpx.ErrBadRequest.WithMessage("invalid signature")
	case errors.Is(err, billing.ErrMissingField):
		return httpx.ErrBadRequest.WithMessage("%s", err.Error())
	case errors.Is(err, billing.ErrPaymentNotComplete):
		return httpx.ErrBadRequest.WithMessage("payment not completed")
	case errors.Is(err, billing.ErrSessionNotFound):
		return httpx.ErrNotFound.WithMessage("payment session not found")
	case errors.As(err, &upstream):
		return httpx.Upstream(provider, upstream.Detail)
	default:
		return err
	}
}
