package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/volkanerene/chartizy-backend2/internal/chart"
	"github.com/volkanerene/chartizy-backend2/internal/genai"
	"github.com/volkanerene/chartizy-backend2/internal/httpx"
	"github.com/volkanerene/chartizy-backend2/internal/identity"
)

type generateChartRequest struct {
	TemplateID string         `json:"template_id"`
	Data       map[string]any `json:"data"`
	ChartType  string         `json:"chart_type,omitempty"`
}

type generateChartResponse struct {
	ID          string         `json:"id"`
	ChartConfig map[string]any `json:"chart_config"`
	JSX         string         `json:"jsx"`
	SVG         string         `json:"svg,omitempty"`
	Description string         `json:"description"`
	CreatedAt   string         `json:"created_at"`
}

type chartResponse struct {
	ID           string         `json:"id"`
	TemplateID   string         `json:"template_id"`
	InputData    map[string]any `json:"input_data"`
	ResultVisual string         `json:"result_visual,omitempty"`
	ResultCode   string         `json:"result_code,omitempty"`
	CreatedAt    string         `json:"created_at"`
}

func toChartResponse(c chart.Chart) chartResponse {
	return chartResponse{
		ID:           c.ID,
		TemplateID:   c.TemplateID,
		InputData:    c.InputData,
		ResultVisual: c.ResultVisual,
		ResultCode:   c.ResultCode,
		CreatedAt:    c.CreatedAt.Format(time.RFC3339),
	}
}

func chartsRouter(deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(deps.Auth.RequireAuth)

	r.Post("/generate", func(w http.ResponseWriter, req *http.Request) {
		a := identity.CurrentAccount(req.Context())

		var in generateChartRequest
		if err := httpx.Decode(req, &in); err != nil {
			httpx.JSONError(w, err)
			return
		}
		if in.TemplateID == "" {
			httpx.JSONError(w, httpx.ErrBadRequest.WithMessage("template_id is required"))
			return
		}

		out, err := deps.Charts.Generate(req.Context(), a, chart.GenerateRequest{
			TemplateID: in.TemplateID,
			Data:       in.Data,
			ChartType:  in.ChartType,
		})
		if err != nil {
			httpx.JSONError(w, mapChartErr(err))
			return
		}

		httpx.JSON(w, http.StatusOK, generateChartResponse{
			ID:          out.Chart.ID,
			ChartConfig: out.Result.ChartConfig,
			JSX:         out.Result.JSX,
			SVG:         out.Result.SVG,
			Description: out.Result.Description,
			CreatedAt:   out.Chart.CreatedAt.Format(time.RFC3339),
		})
	})

	r.Get("/user/{userID}", func(w http.ResponseWriter, req *http.Request) {
		a := identity.CurrentAccount(req.Context())

		charts, err := deps.Charts.ListForUser(req.Context(), a, chi.URLParam(req, "userID"))
		if err != nil {
			httpx.JSONError(w, mapChartErr(err))
			return
		}

		out := make([]chartResponse, 0, len(charts))
		for _, c := range charts {
			out = append(out, toChartResponse(c))
		}
		httpx.JSON(w, http.StatusOK, out)
	})

	r.Get("/{chartID}", func(w http.ResponseWriter, req *http.Request) {
		a := identity.CurrentAccount(req.Context())

		c, err := deps.Charts.Get(req.Context(), a, chi.URLParam(req, "chartID"))
		if err != nil {
			httpx.JSONError(w, mapChartErr(err))
			return
		}
		httpx.JSON(w, http.StatusOK, toChartResponse(*c))
	})

	r.Delete("/{chartID}", func(w http.ResponseWriter, req *http.Request) {
		a := identity.CurrentAccount(req.Context())

		if err := deps.Charts.Delete(req.Context(), a, chi.URLParam(req, "chartID")); err != nil {
			httpx.JSONError(w, mapChartErr(err))
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Chart deleted successfully",
		})
	})

	return r
}

func mapChartErr(err error) error {
	var quotaErr *chart.QuotaError
	var upstream *genai.UpstreamError
	switch {
	case errors.As(err, &quotaErr):
		return httpx.ErrForbidden.WithMessage("%s", quotaErr.Reason)
	case errors.Is(err, chart.ErrPremiumTemplate):
		return httpx.ErrForbidden.WithMessage("this template requires a Pro subscription")
	case errors.Is(err, chart.ErrNotOwner):
		return httpx.ErrForbidden.WithMessage("you can only access your own charts")
	case errors.Is(err, chart.ErrTemplateNotFound):
		return httpx.ErrNotFound.WithMessage("template not found")
	case errors.Is(err, chart.ErrChartNotFound):
		return httpx.ErrNotFound.WithMessage("chart not found")
	case errors.As(err, &upstream):
		return httpx.Upstream("chart generation", upstream.Detail)
	case errors.Is(err, genai.ErrNotConfigured):
		return httpx.ErrMisconfigured.WithMessage("chart generation is not configured")
	default:
		return err
	}
}
