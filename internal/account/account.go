// Package account owns the local user directory: the mapping from an
// externally authenticated identity to an account record carrying the
// subscription tier and usage counters.
package account

import (
	"context"
	"errors"
	"time"
)

// Tier is the subscription level gating metered actions.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierFree || t == TierPro
}

// Account is the local user record. The ID is the identity provider's
// subject id, so the directory is keyed by verified identity.
type Account struct {
	ID               string
	Email            string
	FirstName        string
	LastName         string
	SubscriptionTier Tier
	ChartCount       int
	CreatedAt        time.Time
}

var (
	ErrNotFound    = errors.New("account: not found")
	ErrInvalidTier = errors.New("account: invalid subscription tier")
)

// Store is the persistence contract for the user directory.
type Store interface {
	// GetByID returns the account or ErrNotFound. Absence is a normal
	// outcome for first-time users, not a failure.
	GetByID(ctx context.Context, id string) (*Account, error)

	// Create upserts an account with default tier free and zero chart
	// count. Concurrent creates for the same id must converge on a
	// single record (conflict-on-id semantics, not read-then-write).
	Create(ctx context.Context, id, email string) (*Account, error)

	// UpdateTier sets the subscription tier.
	UpdateTier(ctx context.Context, id string, tier Tier) error

	// UpdateChartCount sets the usage counter.
	UpdateChartCount(ctx context.Context, id string, count int) error

	// UpdateProfile applies a partial name update; nil fields are
	// no-ops rather than overwrites with empty values.
	UpdateProfile(ctx context.Context, id string, firstName, lastName *string) error
}
