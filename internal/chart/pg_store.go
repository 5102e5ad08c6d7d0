package chart

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/volkanerene/chartizy-backend2/pkg/pg"
)

// PGStore is the pgx-backed chart store.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Create(ctx context.Context, c *Chart) (*Chart, error) {
	const q = `
		INSERT INTO charts (user_id, template_id, input_data, result_visual, result_code)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, template_id, input_data, result_visual, result_code, created_at`

	var created Chart
	err := s.pool.QueryRow(ctx, q,
		c.UserID, c.TemplateID, c.InputData, c.ResultVisual, c.ResultCode,
	).Scan(
		&created.ID, &created.UserID, &created.TemplateID, &created.InputData,
		&created.ResultVisual, &created.ResultCode, &created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("chart: create: %w", err)
	}
	return &created, nil
}

func (s *PGStore) GetByID(ctx context.Context, id string) (*Chart, error) {
	const q = `
		SELECT id, user_id, template_id, input_data, COALESCE(result_visual, ''), COALESCE(result_code, ''), created_at
		FROM charts
		WHERE id = $1`

	var c Chart
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&c.ID, &c.UserID, &c.TemplateID, &c.InputData,
		&c.ResultVisual, &c.ResultCode, &c.CreatedAt,
	)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrChartNotFound
		}
		return nil, fmt.Errorf("chart: get %s: %w", id, err)
	}
	return &c, nil
}

func (s *PGStore) ListByUser(ctx context.Context, userID string) ([]Chart, error) {
	const q = `
		SELECT id, user_id, template_id, input_data, COALESCE(result_visual, ''), COALESCE(result_code, ''), created_at
		FROM charts
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("chart: list for %s: %w", userID, err)
	}

	charts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Chart, error) {
		var c Chart
		err := row.Scan(
			&c.ID, &c.UserID, &c.TemplateID, &c.InputData,
			&c.ResultVisual, &c.ResultCode, &c.CreatedAt,
		)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("chart: list for %s: %w", userID, err)
	}
	return charts, nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM charts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("chart: delete %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrChartNotFound
	}
	return nil
}

// PGTemplateStore is the pgx-backed template catalog.
type PGTemplateStore struct {
	pool *pgxpool.Pool
}

func NewPGTemplateStore(pool *pgxpool.Pool) *PGTemplateStore {
	return &PGTemplateStore{pool: pool}
}

const templateColumns = `id, name, COALESCE(description, ''), chart_type, is_premium, example_data, COALESCE(thumbnail_url, '')`

func scanTemplate(row pgx.CollectableRow) (Template, error) {
	var t Template
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.ChartType,
		&t.IsPremium, &t.ExampleData, &t.ThumbnailURL,
	)
	return t, err
}

func (s *PGTemplateStore) List(ctx context.Context) ([]Template, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+templateColumns+` FROM templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("chart: list templates: %w", err)
	}

	templates, err := pgx.CollectRows(rows, scanTemplate)
	if err != nil {
		return nil, fmt.Errorf("chart: list templates: %w", err)
	}
	return templates, nil
}

func (s *PGTemplateStore) ListPublic(ctx context.Context) ([]Template, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE NOT is_premium ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("chart: list public templates: %w", err)
	}

	templates, err := pgx.CollectRows(rows, scanTemplate)
	if err != nil {
		return nil, fmt.Errorf("chart: list public templates: %w", err)
	}
	return templates, nil
}

func (s *PGTemplateStore) GetByID(ctx context.Context, id string) (*Template, error) {
	var t Template
	err := s.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE id = $1`, id,
	).Scan(
		&t.ID, &t.Name, &t.Description, &t.ChartType,
		&t.IsPremium, &t.ExampleData, &t.ThumbnailURL,
	)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("chart: get template %s: %w", id, err)
	}
	return &t, nil
}
