package account

import (
	"context"
	"errors"
	"log/slog"
)

// Resolver turns a verified identity into an account, auto-provisioning
// a record on first access.
type Resolver struct {
	store Store
	log   *slog.Logger
}

// NewResolver returns a resolver over the given directory.
func NewResolver(store Store, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Resolver{store: store, log: log}
}

// Resolve looks up the account for a verified subject, creating it if
// absent. It never fails: when the directory is unavailable it returns
// a non-persisted free-tier view so authorization downstream always
// receives a well-formed account. Identity resolution is the only path
// allowed to degrade this way.
func (r *Resolver) Resolve(ctx context.Context, subjectID, email string) *Account {
	a, err := r.store.GetByID(ctx, subjectID)
	if err == nil {
		return a
	}
	if !errors.Is(err, ErrNotFound) {
		r.log.WarnContext(ctx, "account lookup failed, serving default view",
			"subject_id", subjectID, "error", err)
		return defaultView(subjectID, email)
	}

	a, err = r.store.Create(ctx, subjectID, email)
	if err != nil {
		r.log.WarnContext(ctx, "account auto-provisioning failed, serving default view",
			"subject_id", subjectID, "error", err)
		return defaultView(subjectID, email)
	}
	return a
}

func defaultView(subjectID, email string) *Account {
	return &Account{
		ID:               subjectID,
		Email:            email,
		SubscriptionTier: TierFree,
		ChartCount:       0,
	}
}
