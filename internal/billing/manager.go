package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/volkanerene/chartizy-backend2/internal/account"
)

// Manager coordinates the payment session lifecycle across providers:
// opening sessions, verifying confirmations, and applying verified
// outcomes exactly once per order.
type Manager struct {
	providers  map[string]Provider
	sessions   SessionStore
	reconciler *Reconciler
	dedupe     Deduper
	log        *slog.Logger
}

// NewManager wires the providers with the session store and reconciler.
// The deduper is optional; without it replay suppression falls entirely
// on the session store's conditional status transition.
func NewManager(sessions SessionStore, reconciler *Reconciler, dedupe Deduper, log *slog.Logger, providers ...Provider) *Manager {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Manager{
		providers:  byName,
		sessions:   sessions,
		reconciler: reconciler,
		dedupe:     dedupe,
		log:        log,
	}
}

func (m *Manager) provider(name string) (Provider, error) {
	p, ok := m.providers[name]
	if !ok {
		return nil, fmt.Errorf("billing: unknown provider %q", name)
	}
	return p, nil
}

// CreateSession opens a payment session with the named provider. For
// shapes whose confirmation carries no verified bearer token, a session
// record is persisted so the later confirmation can be correlated back
// to the subject; the hosted-checkout shape correlates through its own
// session metadata and needs no record.
func (m *Manager) CreateSession(ctx context.Context, providerName string, req SessionRequest) (*SessionData, error) {
	p, err := m.provider(providerName)
	if err != nil {
		return nil, err
	}

	data, err := p.CreateSession(ctx, req)
	if err != nil {
		return nil, err
	}

	if p.Shape() != ShapeHostedCheckout {
		sess := &Session{
			OrderID:     data.OrderID,
			Provider:    p.Name(),
			SubjectID:   req.SubjectID,
			AmountMinor: int64(req.Amount * 100),
			Currency:    req.Currency,
			Status:      StatusCreated,
		}
		if err := m.sessions.Save(ctx, sess); err != nil {
			// Without the record the confirmation cannot be correlated;
			// surface the failure rather than hand out a dead session.
			return nil, err
		}
	}

	m.log.InfoContext(ctx, "payment session created",
		"provider", p.Name(), "order_id", data.OrderID, "subject_id", req.SubjectID)
	return data, nil
}

// Confirm validates an inbound confirmation with the named provider and
// applies a verified completed outcome to the subject's subscription.
// Replays resolve to a successful no-op: the deduper short-circuits
// fast repeats and the session store's confirmed status is the durable
// guard, with tier re-application idempotent underneath both. Both
// guards commit only after the tier grant succeeds, so a failed grant
// stays retryable.
func (m *Manager) Confirm(ctx context.Context, providerName string, conf Confirmation) (*Outcome, error) {
	p, err := m.provider(providerName)
	if err != nil {
		return nil, err
	}

	outcome, err := p.ConfirmSession(ctx, conf)
	if err != nil {
		return nil, err
	}

	if !outcome.Completed {
		if outcome.OrderID != "" {
			if err := m.sessions.MarkFailed(ctx, outcome.OrderID); err != nil {
				m.log.WarnContext(ctx, "failed to record failed payment",
					"provider", providerName, "order_id", outcome.OrderID, "error", err)
			}
		}
		return outcome, nil
	}

	subjectID := outcome.SubjectID
	if subjectID == "" {
		sess, err := m.sessions.Get(ctx, outcome.OrderID)
		if err != nil {
			return nil, fmt.Errorf("billing: cannot correlate order %s to a subject: %w", outcome.OrderID, err)
		}
		subjectID = sess.SubjectID
	}

	// Replay checks stay read-only here. Neither guard commits until
	// the grant below succeeds, so a transient tier-update failure
	// leaves the order unmarked and the provider's retry goes through.
	dedupeKey := providerName + ":" + outcome.OrderID
	if m.dedupe != nil && outcome.OrderID != "" {
		seen, err := m.dedupe.Seen(ctx, dedupeKey)
		if err != nil {
			m.log.WarnContext(ctx, "confirmation dedupe unavailable",
				"provider", providerName, "order_id", outcome.OrderID, "error", err)
		} else if seen {
			outcome.SubjectID = subjectID
			return outcome, nil
		}
	}

	if outcome.OrderID != "" {
		sess, err := m.sessions.Get(ctx, outcome.OrderID)
		switch {
		case err == nil && sess.Status == StatusConfirmed:
			// Known order already applied: duplicate confirmation,
			// not a second grant.
			outcome.SubjectID = subjectID
			return outcome, nil
		case err != nil && !errors.Is(err, ErrSessionNotFound):
			return nil, err
		}
		// No session record exists for this shape; tier idempotency
		// below is the remaining guard.
	}

	if err := m.reconciler.Apply(ctx, subjectID, account.TierPro); err != nil {
		return nil, err
	}

	if outcome.OrderID != "" {
		if _, err := m.sessions.MarkConfirmed(ctx, outcome.OrderID); err != nil {
			// The grant already holds and re-application is a no-op,
			// so a failed status commit only costs the fast path.
			m.log.WarnContext(ctx, "failed to mark session confirmed",
				"provider", providerName, "order_id", outcome.OrderID, "error", err)
		}
		if m.dedupe != nil {
			if err := m.dedupe.Mark(ctx, dedupeKey); err != nil {
				m.log.WarnContext(ctx, "confirmation dedupe unavailable",
					"provider", providerName, "order_id", outcome.OrderID, "error", err)
			}
		}
	}

	outcome.SubjectID = subjectID
	return outcome, nil
}

// VerifyIAP applies a mobile in-app purchase to the subject. The
// receipt only gets a shape sanity check here; store-side verification
// against Apple/Google is handled upstream of this deployment.
func (m *Manager) VerifyIAP(ctx context.Context, subjectID, receipt, platform string) error {
	if platform != "ios" && platform != "android" {
		return fmt.Errorf("%w: platform", ErrMissingField)
	}
	if len(receipt) < 10 {
		return fmt.Errorf("%w: receipt", ErrMissingField)
	}
	return m.reconciler.Apply(ctx, subjectID, account.TierPro)
}
