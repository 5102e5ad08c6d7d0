package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/volkanerene/chartizy-backend2/internal/account"
	"github.com/volkanerene/chartizy-backend2/internal/httpx"
	"github.com/volkanerene/chartizy-backend2/internal/identity"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	UserID           string `json:"user_id"`
	Email            string `json:"email"`
	SubscriptionTier string `json:"subscription_tier"`
	ChartCount       int    `json:"chart_count"`
}

type userResponse struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	SubscriptionTier string `json:"subscription_tier"`
	ChartCount       int    `json:"chart_count"`
	CreatedAt        string `json:"created_at"`
}

func toUserResponse(a *account.Account) userResponse {
	created := ""
	if !a.CreatedAt.IsZero() {
		created = a.CreatedAt.Format(time.RFC3339)
	}
	return userResponse{
		ID:               a.ID,
		Email:            a.Email,
		FirstName:        a.FirstName,
		LastName:         a.LastName,
		SubscriptionTier: string(a.SubscriptionTier),
		ChartCount:       a.ChartCount,
		CreatedAt:        created,
	}
}

func authRouter(deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Post("/login", func(w http.ResponseWriter, req *http.Request) {
		var in loginRequest
		if err := httpx.Decode(req, &in); err != nil {
			httpx.JSONError(w, err)
			return
		}
		if in.Email == "" || in.Password == "" {
			httpx.JSONError(w, httpx.ErrBadRequest.WithMessage("email and password are required"))
			return
		}

		sess, err := deps.Identity.SignIn(req.Context(), in.Email, in.Password)
		if err != nil {
			httpx.JSONError(w, mapIdentityErr(err))
			return
		}

		a := deps.Resolver.Resolve(req.Context(), sess.Claims.SubjectID, sess.Claims.Email)
		httpx.JSON(w, http.StatusOK, loginResponse{
			AccessToken:      sess.AccessToken,
			TokenType:        "bearer",
			UserID:           a.ID,
			Email:            a.Email,
			SubscriptionTier: string(a.SubscriptionTier),
			ChartCount:       a.ChartCount,
		})
	})

	r.Post("/register", func(w http.ResponseWriter, req *http.Request) {
		var in loginRequest
		if err := httpx.Decode(req, &in); err != nil {
			httpx.JSONError(w, err)
			return
		}
		if in.Email == "" || in.Password == "" {
			httpx.JSONError(w, httpx.ErrBadRequest.WithMessage("email and password are required"))
			return
		}

		sess, err := deps.Identity.SignUp(req.Context(), in.Email, in.Password)
		if err != nil {
			httpx.JSONError(w, mapIdentityErr(err))
			return
		}

		a := deps.Resolver.Resolve(req.Context(), sess.Claims.SubjectID, sess.Claims.Email)
		// AccessToken may be empty when the provider requires email
		// confirmation before issuing a session.
		httpx.JSON(w, http.StatusOK, loginResponse{
			AccessToken:      sess.AccessToken,
			TokenType:        "bearer",
			UserID:           a.ID,
			Email:            a.Email,
			SubscriptionTier: string(a.SubscriptionTier),
			ChartCount:       a.ChartCount,
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.RequireAuth)

		r.Get("/me", func(w http.ResponseWriter, req *http.Request) {
			a := identity.CurrentAccount(req.Context())
			httpx.JSON(w, http.StatusOK, toUserResponse(a))
		})
	})

	return r
}

func mapIdentityErr(err error) error {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		return httpx.ErrUnauthenticated.WithMessage("invalid email or password")
	case errors.Is(err, identity.ErrSignUpFailed):
		return httpx.ErrBadRequest.WithMessage("registration failed")
	case errors.Is(err, identity.ErrProviderNotConfigured):
		return httpx.ErrMisconfigured.WithMessage("identity provider is not configured")
	default:
		return httpx.Upstream("identity provider", err.Error())
	}
}
