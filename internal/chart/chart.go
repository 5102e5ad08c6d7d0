// Package chart owns the chart catalog: templates, generated charts,
// and the generation service gating the metered action behind the
// subscription quota.
package chart

import (
	"context"
	"errors"
	"time"
)

// Template is a chart blueprint. Premium templates are visible to
// everyone but only usable by pro accounts.
type Template struct {
	ID           string
	Name         string
	Description  string
	ChartType    string
	IsPremium    bool
	ExampleData  map[string]any
	ThumbnailURL string
}

// Chart is a generated chart owned by a single account.
type Chart struct {
	ID           string
	UserID       string
	TemplateID   string
	InputData    map[string]any
	ResultVisual string
	ResultCode   string
	CreatedAt    time.Time
}

var (
	ErrChartNotFound    = errors.New("chart: not found")
	ErrTemplateNotFound = errors.New("chart: template not found")
)

// Store is the persistence contract for generated charts.
type Store interface {
	Create(ctx context.Context, c *Chart) (*Chart, error)

	// GetByID returns the chart or ErrChartNotFound.
	GetByID(ctx context.Context, id string) (*Chart, error)

	// ListByUser returns the user's charts, newest first.
	ListByUser(ctx context.Context, userID string) ([]Chart, error)

	// Delete removes the chart or returns ErrChartNotFound.
	Delete(ctx context.Context, id string) error
}

// TemplateStore is the read contract for the template catalog.
type TemplateStore interface {
	List(ctx context.Context) ([]Template, error)
	ListPublic(ctx context.Context) ([]Template, error)

	// GetByID returns the template or ErrTemplateNotFound.
	GetByID(ctx context.Context, id string) (*Template, error)
}
