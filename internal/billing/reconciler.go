package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/volkanerene/chartizy-backend2/internal/account"
)

// Reconciler applies verified payment confirmations to the user
// directory. Re-applying the same tier is a no-op in effect, so the
// reconciler is safe to invoke from multiple confirmation paths for the
// same logical payment.
type Reconciler struct {
	accounts account.Store
	log      *slog.Logger
}

func NewReconciler(accounts account.Store, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{accounts: accounts, log: log}
}

// Apply sets the subject's subscription tier. Callers must only reach
// this after the confirmation has been verified.
func (r *Reconciler) Apply(ctx context.Context, subjectID string, tier account.Tier) error {
	if err := r.accounts.UpdateTier(ctx, subjectID, tier); err != nil {
		return fmt.Errorf("billing: reconcile %s to %s: %w", subjectID, tier, err)
	}
	r.log.InfoContext(ctx, "subscription reconciled", "subject_id", subjectID, "tier", tier)
	return nil
}
