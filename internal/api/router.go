// Package api is the HTTP surface: chi routers translating requests
// into domain calls and domain errors into the shared taxonomy.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/volkanerene/chartizy-backend2/internal/account"
	"github.com/volkanerene/chartizy-backend2/internal/billing"
	"github.com/volkanerene/chartizy-backend2/internal/chart"
	"github.com/volkanerene/chartizy-backend2/internal/genai"
	"github.com/volkanerene/chartizy-backend2/internal/identity"
)

// AIClient is the slice of the generative-text client the AI helper
// endpoints need. Satisfied by *genai.Client.
type AIClient interface {
	AnalyzePrompt(ctx context.Context, prompt string) (*genai.PromptAnalysis, error)
	GenerateData(ctx context.Context, description string, dataPoints int, chartType string) (*genai.DataSet, error)
	TranscribeAudio(ctx context.Context, audioBase64, mimeType string) (string, error)
}

// Deps carries everything the routers need. All fields are required
// unless noted.
type Deps struct {
	Log       *slog.Logger
	Auth      *identity.Middleware
	Identity  identity.Provider
	Accounts  account.Store
	Resolver  *account.Resolver
	Charts    *chart.Service
	Templates chart.TemplateStore
	Billing   *billing.Manager
	AI        AIClient

	// Health responds to liveness and readiness probes. Optional; a
	// plain 200 is served when unset.
	Health http.HandlerFunc
}

// NewRouter assembles the full API surface.
func NewRouter(deps Deps) chi.Router {
	if deps.Log == nil {
		deps.Log = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	health := deps.Health
	if health == nil {
		health = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}
	}
	r.Get("/", health)
	r.Get("/health", health)

	r.Mount("/auth", authRouter(deps))
	r.Mount("/profile", profileRouter(deps))
	r.Mount("/templates", templatesRouter(deps))
	r.Mount("/chart", chartsRouter(deps))
	r.Mount("/ai", aiRouter(deps))
	r.Mount("/payment", paymentRouter(deps))
	r.Mount("/subscription", subscriptionRouter(deps))

	return r
}
