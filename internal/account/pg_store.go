package account

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/volkanerene/chartizy-backend2/pkg/pg"
)

// PGStore is the pgx-backed user directory.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a directory backed by the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) GetByID(ctx context.Context, id string) (*Account, error) {
	const q = `
		SELECT id, email, COALESCE(first_name, ''), COALESCE(last_name, ''),
		       subscription_tier, chart_count, created_at
		FROM accounts
		WHERE id = $1`

	var a Account
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&a.ID, &a.Email, &a.FirstName, &a.LastName,
		&a.SubscriptionTier, &a.ChartCount, &a.CreatedAt,
	)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("account: get by id: %w", err)
	}
	return &a, nil
}

// Create upserts by primary key so two concurrent first requests from
// the same new user converge on one record instead of racing a
// read-then-write. The DO UPDATE refreshes the email but leaves tier
// and counters alone.
func (s *PGStore) Create(ctx context.Context, id, email string) (*Account, error) {
	const q = `
		INSERT INTO accounts (id, email, subscription_tier, chart_count)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, email, COALESCE(first_name, ''), COALESCE(last_name, ''),
		          subscription_tier, chart_count, created_at`

	var a Account
	err := s.pool.QueryRow(ctx, q, id, email, TierFree).Scan(
		&a.ID, &a.Email, &a.FirstName, &a.LastName,
		&a.SubscriptionTier, &a.ChartCount, &a.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("account: create: %w", err)
	}
	return &a, nil
}

func (s *PGStore) UpdateTier(ctx context.Context, id string, tier Tier) error {
	if !tier.Valid() {
		return ErrInvalidTier
	}

	tag, err := s.pool.Exec(ctx, `UPDATE accounts SET subscription_tier = $2 WHERE id = $1`, id, tier)
	if err != nil {
		return fmt.Errorf("account: update tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) UpdateChartCount(ctx context.Context, id string, count int) error {
	if count < 0 {
		count = 0
	}

	tag, err := s.pool.Exec(ctx, `UPDATE accounts SET chart_count = $2 WHERE id = $1`, id, count)
	if err != nil {
		return fmt.Errorf("account: update chart count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile only touches the columns for which a value was
// provided; COALESCE keeps the stored value when the argument is NULL.
func (s *PGStore) UpdateProfile(ctx context.Context, id string, firstName, lastName *string) error {
	if firstName == nil && lastName == nil {
		return nil
	}

	const q = `
		UPDATE accounts
		SET first_name = COALESCE($2, first_name),
		    last_name  = COALESCE($3, last_name)
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, id, firstName, lastName)
	if err != nil {
		return fmt.Errorf("account: update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
