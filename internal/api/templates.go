package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/volkanerene/chartizy-backend2/internal/chart"
	"github.com/volkanerene/chartizy-backend2/internal/httpx"
)

type templateResponse struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	ChartType    string         `json:"chart_type"`
	IsPremium    bool           `json:"is_premium"`
	ExampleData  map[string]any `json:"example_data,omitempty"`
	ThumbnailURL string         `json:"thumbnail_url,omitempty"`
}

func toTemplateResponse(t chart.Template) templateResponse {
	return templateResponse{
		ID:           t.ID,
		Name:         t.Name,
		Description:  t.Description,
		ChartType:    t.ChartType,
		IsPremium:    t.IsPremium,
		ExampleData:  t.ExampleData,
		ThumbnailURL: t.ThumbnailURL,
	}
}

// templatesRouter serves the template catalog. Premium templates are
// listed for everyone; the pro gate applies at generation time.
func templatesRouter(deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(deps.Auth.OptionalAuth)

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		templates, err := deps.Templates.List(req.Context())
		if err != nil {
			httpx.JSONError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, toTemplateResponses(templates))
	})

	r.Get("/public", func(w http.ResponseWriter, req *http.Request) {
		templates, err := deps.Templates.ListPublic(req.Context())
		if err != nil {
			httpx.JSONError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, toTemplateResponses(templates))
	})

	r.Get("/{templateID}", func(w http.ResponseWriter, req *http.Request) {
		t, err := deps.Templates.GetByID(req.Context(), chi.URLParam(req, "templateID"))
		if err != nil {
			if errors.Is(err, chart.ErrTemplateNotFound) {
				httpx.JSONError(w, httpx.ErrNotFound.WithMessage("template not found"))
				return
			}
			httpx.JSONError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, toTemplateResponse(*t))
	})

	return r
}

func toTemplateResponses(templates []chart.Template) []templateResponse {
	out := make([]templateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, toTemplateResponse(t))
	}
	return out
}
