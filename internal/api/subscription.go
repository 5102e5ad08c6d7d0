package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/volkanerene/chartizy-backend2/internal/account"
	"github.com/volkanerene/chartizy-backend2/internal/billing"
	"github.com/volkanerene/chartizy-backend2/internal/httpx"
	"github.com/volkanerene/chartizy-backend2/internal/identity"
)

type createCheckoutRequest struct {
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

type verifyIAPRequest struct {
	Receipt  string `json:"receipt"`
	Platform string `json:"platform"`
}

func subscriptionRouter(deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.RequireAuth)

		r.Post("/create-checkout-session", func(w http.ResponseWriter, req *http.Request) {
			a := identity.CurrentAccount(req.Context())

			var in createCheckoutRequest
			if err := httpx.Decode(req, &in); err != nil {
				httpx.JSONError(w, err)
				return
			}

			data, err := deps.Billing.CreateSession(req.Context(), billing.ProviderCheckout, billing.SessionRequest{
				SubjectID:  a.ID,
				Email:      a.Email,
				SuccessURL: in.SuccessURL,
				CancelURL:  in.CancelURL,
			})
			if err != nil {
				httpx.JSONError(w, mapBillingErr("stripe", err))
				return
			}

			httpx.JSON(w, http.StatusOK, map[string]string{
				"session_id": data.OrderID,
				"url":        data.RedirectURL,
			})
		})

		r.Post("/verify-iap", func(w http.ResponseWriter, req *http.Request) {
			a := identity.CurrentAccount(req.Context())

			var in verifyIAPRequest
			if err := httpx.Decode(req, &in); err != nil {
				httpx.JSONError(w, err)
				return
			}

			if err := deps.Billing.VerifyIAP(req.Context(), a.ID, in.Receipt, in.Platform); err != nil {
				httpx.JSONError(w, mapBillingErr("iap", err))
				return
			}

			httpx.JSON(w, http.StatusOK, map[string]any{
				"success":           true,
				"subscription_tier": string(account.TierPro),
			})
		})
	})

	// Stripe calls this; trust comes from the Stripe-Signature header.
	r.Post("/webhook", func(w http.ResponseWriter, req *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(req.Body, maxWebhookBody))
		if err != nil {
			httpx.JSONError(w, httpx.ErrBadRequest.WithMessage("cannot read payload"))
			return
		}

		_, err = deps.Billing.Confirm(req.Context(), billing.ProviderCheckout, billing.Confirmation{
			Payload:   payload,
			Signature: req.Header.Get("Stripe-Signature"),
		})
		if err != nil {
			httpx.JSONError(w, mapBillingErr("stripe", err))
			return
		}

		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
