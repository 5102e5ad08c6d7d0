package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/volkanerene/chartizy-backend2/internal/httpx"
	"github.com/volkanerene/chartizy-backend2/internal/identity"
)

type profileUpdateRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

type profileUpdateResponse struct {
	Success   bool   `json:"success"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

func profileRouter(deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(deps.Auth.RequireAuth)

	r.Put("/update", func(w http.ResponseWriter, req *http.Request) {
		a := identity.CurrentAccount(req.Context())

		var in profileUpdateRequest
		if err := httpx.Decode(req, &in); err != nil {
			httpx.JSONError(w, err)
			return
		}

		if err := deps.Accounts.UpdateProfile(req.Context(), a.ID, in.FirstName, in.LastName); err != nil {
			httpx.JSONError(w, httpx.ErrInternal.WithMessage("failed to update profile"))
			return
		}

		updated, err := deps.Accounts.GetByID(req.Context(), a.ID)
		if err != nil {
			// The update itself succeeded; answer with what was sent.
			out := profileUpdateResponse{Success: true}
			if in.FirstName != nil {
				out.FirstName = *in.FirstName
			}
			if in.LastName != nil {
				out.LastName = *in.LastName
			}
			httpx.JSON(w, http.StatusOK, out)
			return
		}

		httpx.JSON(w, http.StatusOK, profileUpdateResponse{
			Success:   true,
			FirstName: updated.FirstName,
			LastName:  updated.LastName,
		})
	})

	return r
}
