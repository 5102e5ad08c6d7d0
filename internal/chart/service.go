package chart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/volkanerene/chartizy-backend2/internal/account"
	"github.com/volkanerene/chartizy-backend2/internal/genai"
)

var (
	// ErrPremiumTemplate gates premium templates to pro accounts.
	ErrPremiumTemplate = errors.New("chart: this template requires a Pro subscription")

	// ErrNotOwner rejects access to another account's charts.
	ErrNotOwner = errors.New("chart: not the owner")
)

// QuotaError rejects generation once a free account has used up its
// allowance. The reason is the user-facing message.
type QuotaError struct {
	Reason string
}

func (e *QuotaError) Error() string { return "chart: " + e.Reason }

// Generator produces a chart configuration from a chart type and input
// data. Satisfied by *genai.Client.
type Generator interface {
	GenerateChart(ctx context.Context, chartType string, data map[string]any) (*genai.ChartResult, error)
}

// Service runs the chart lifecycle: quota-gated generation, ownership
// checks on reads, and count bookkeeping on deletes.
type Service struct {
	charts    Store
	templates TemplateStore
	accounts  account.Store
	generator Generator
	log       *slog.Logger
}

func NewService(charts Store, templates TemplateStore, accounts account.Store, generator Generator, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{
		charts:    charts,
		templates: templates,
		accounts:  accounts,
		generator: generator,
		log:       log,
	}
}

// GenerateRequest is the input to Generate. ChartType overrides the
// template's type when set.
type GenerateRequest struct {
	TemplateID string
	Data       map[string]any
	ChartType  string
}

// Generated pairs the persisted chart with the full generation result.
type Generated struct {
	Chart  *Chart
	Result *genai.ChartResult
}

// Generate runs the metered action: quota check, template premium
// gate, provider call, persistence, then the count increment. The
// check and the increment are separate statements, so two in-flight
// requests near the limit can both pass; the overshoot is bounded by
// the request concurrency of a single account.
func (s *Service) Generate(ctx context.Context, acct *account.Account, req GenerateRequest) (*Generated, error) {
	decision := account.Permit(acct.SubscriptionTier, acct.ChartCount)
	if !decision.Allowed {
		return nil, &QuotaError{Reason: decision.Reason}
	}

	template, err := s.templates.GetByID(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if template.IsPremium && acct.SubscriptionTier != account.TierPro {
		return nil, ErrPremiumTemplate
	}

	chartType := req.ChartType
	if chartType == "" {
		chartType = template.ChartType
	}
	chartType = genai.NormalizeChartType(chartType)

	result, err := s.generator.GenerateChart(ctx, chartType, req.Data)
	if err != nil {
		return nil, fmt.Errorf("chart: generation failed: %w", err)
	}

	visual, err := json.Marshal(result.ChartConfig)
	if err != nil {
		return nil, fmt.Errorf("chart: encode configuration: %w", err)
	}

	created, err := s.charts.Create(ctx, &Chart{
		UserID:       acct.ID,
		TemplateID:   template.ID,
		InputData:    req.Data,
		ResultVisual: string(visual),
		ResultCode:   result.JSX,
	})
	if err != nil {
		return nil, err
	}

	if err := s.accounts.UpdateChartCount(ctx, acct.ID, acct.ChartCount+1); err != nil {
		return nil, fmt.Errorf("chart: update usage count: %w", err)
	}

	s.log.InfoContext(ctx, "chart generated",
		"chart_id", created.ID, "user_id", acct.ID, "template_id", template.ID, "chart_type", chartType)

	return &Generated{Chart: created, Result: result}, nil
}

// ListForUser returns the user's charts. Accounts can only list their
// own.
func (s *Service) ListForUser(ctx context.Context, acct *account.Account, userID string) ([]Chart, error) {
	if acct.ID != userID {
		return nil, ErrNotOwner
	}
	return s.charts.ListByUser(ctx, userID)
}

// Get returns the chart after an ownership check.
func (s *Service) Get(ctx context.Context, acct *account.Account, chartID string) (*Chart, error) {
	c, err := s.charts.GetByID(ctx, chartID)
	if err != nil {
		return nil, err
	}
	if c.UserID != acct.ID {
		return nil, ErrNotOwner
	}
	return c, nil
}

// Delete removes the owner's chart and decrements the usage count,
// never below zero.
func (s *Service) Delete(ctx context.Context, acct *account.Account, chartID string) error {
	c, err := s.charts.GetByID(ctx, chartID)
	if err != nil {
		return err
	}
	if c.UserID != acct.ID {
		return ErrNotOwner
	}

	if err := s.charts.Delete(ctx, chartID); err != nil {
		return err
	}

	count := acct.ChartCount - 1
	if count < 0 {
		count = 0
	}
	if err := s.accounts.UpdateChartCount(ctx, acct.ID, count); err != nil {
		return fmt.Errorf("chart: update usage count: %w", err)
	}

	s.log.InfoContext(ctx, "chart deleted", "chart_id", chartID, "user_id", acct.ID)
	return nil
}
