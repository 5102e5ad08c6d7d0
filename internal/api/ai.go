package api

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/volkanerene/chartizy-backend2/internal/genai"
	"github.com/volkanerene/chartizy-backend2/internal/httpx"
)

type analyzePromptRequest struct {
	Prompt   string `json:"prompt"`
	Language string `json:"language,omitempty"`
}

type generateDataRequest struct {
	Description string `json:"description"`
	DataPoints  int    `json:"data_points,omitempty"`
	ChartType   string `json:"chart_type,omitempty"`
}

type transcribeAudioRequest struct {
	AudioBase64 string `json:"audio_base64"`
	MimeType    string `json:"mime_type,omitempty"`
}

// aiRouter serves the prompt-to-data helpers. Callers may be
// anonymous; a valid token personalizes nothing here but is accepted.
func aiRouter(deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(deps.Auth.OptionalAuth)

	r.Post("/analyze-prompt", func(w http.ResponseWriter, req *http.Request) {
		var in analyzePromptRequest
		if err := httpx.Decode(req, &in); err != nil {
			httpx.JSONError(w, err)
			return
		}
		if in.Prompt == "" {
			httpx.JSONError(w, httpx.ErrBadRequest.WithMessage("prompt is required"))
			return
		}

		analysis, err := deps.AI.AnalyzePrompt(req.Context(), in.Prompt)
		if err != nil {
			httpx.JSONError(w, mapAIErr(err))
			return
		}

		httpx.JSON(w, http.StatusOK, map[string]any{
			"success":             true,
			"labels":              analysis.Labels,
			"values":              analysis.Values,
			"title":               analysis.Title,
			"description":         analysis.Description,
			"suggested_charts":    analysis.SuggestedCharts,
			"data_interpretation": analysis.DataInterpretation,
		})
	})

	r.Post("/generate-data", func(w http.ResponseWriter, req *http.Request) {
		var in generateDataRequest
		if err := httpx.Decode(req, &in); err != nil {
			httpx.JSONError(w, err)
			return
		}
		if in.Description == "" {
			httpx.JSONError(w, httpx.ErrBadRequest.WithMessage("description is required"))
			return
		}

		ds, err := deps.AI.GenerateData(req.Context(), in.Description, in.DataPoints, in.ChartType)
		if err != nil {
			httpx.JSONError(w, mapAIErr(err))
			return
		}
		httpx.JSON(w, http.StatusOK, ds)
	})

	r.Post("/transcribe-audio", func(w http.ResponseWriter, req *http.Request) {
		var in transcribeAudioRequest
		if err := httpx.Decode(req, &in); err != nil {
			httpx.JSONError(w, err)
			return
		}
		if in.AudioBase64 == "" {
			httpx.JSONError(w, httpx.ErrBadRequest.WithMessage("audio_base64 is required"))
			return
		}

		text, err := deps.AI.TranscribeAudio(req.Context(), in.AudioBase64, in.MimeType)
		if err != nil {
			httpx.JSONError(w, mapAIErr(err))
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"text": text})
	})

	return r
}

func mapAIErr(err error) error {
	var upstream *genai.UpstreamError
	var corrupt base64.CorruptInputError
	switch {
	case errors.As(err, &corrupt):
		return httpx.ErrBadRequest.WithMessage("invalid audio payload")
	case errors.As(err, &upstream):
		return httpx.Upstream("ai provider", upstream.Detail)
	case errors.Is(err, genai.ErrNotConfigured):
		return httpx.ErrMisconfigured.WithMessage("ai provider is not configured")
	default:
		return httpx.Upstream("ai provider", err.Error())
	}
}
