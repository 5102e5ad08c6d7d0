package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/volkanerene/chartizy-backend2/pkg/pg"
)

// SessionStatus is the lifecycle state of a payment session.
type SessionStatus string

const (
	StatusCreated        SessionStatus = "created"
	StatusPendingCapture SessionStatus = "pending_capture"
	StatusConfirmed      SessionStatus = "confirmed"
	StatusFailed         SessionStatus = "failed"
)

// Session correlates a provider order back to a subject. For the
// redirect and local-card providers the confirming call carries no
// verified bearer token, so this record is the durable mapping that
// completes reconciliation and guards against double-crediting.
type Session struct {
	OrderID     string
	Provider    string
	SubjectID   string
	AmountMinor int64
	Currency    string
	Status      SessionStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SessionStore persists payment sessions keyed by order id.
type SessionStore interface {
	// Save inserts or refreshes a session record.
	Save(ctx context.Context, s *Session) error

	// Get returns the session or ErrSessionNotFound.
	Get(ctx context.Context, orderID string) (*Session, error)

	// MarkConfirmed transitions the session to confirmed and reports
	// whether this call performed the transition. A false result means
	// the order was already applied (or never existed), so the caller
	// must not grant again.
	MarkConfirmed(ctx context.Context, orderID string) (bool, error)

	// MarkFailed records a verified failed outcome.
	MarkFailed(ctx context.Context, orderID string) error
}

// PGSessionStore is the pgx-backed session store.
type PGSessionStore struct {
	pool *pgxpool.Pool
}

func NewPGSessionStore(pool *pgxpool.Pool) *PGSessionStore {
	return &PGSessionStore{pool: pool}
}

func (s *PGSessionStore) Save(ctx context.Context, sess *Session) error {
	const q = `
		INSERT INTO payment_sessions (order_id, provider, subject_id, amount_minor, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id) DO UPDATE SET status = EXCLUDED.status, updated_at = now()`

	_, err := s.pool.Exec(ctx, q,
		sess.OrderID, sess.Provider, sess.SubjectID, sess.AmountMinor, sess.Currency, sess.Status)
	if err != nil {
		return fmt.Errorf("billing: save session: %w", err)
	}
	return nil
}

func (s *PGSessionStore) Get(ctx context.Context, orderID string) (*Session, error) {
	const q = `
		SELECT order_id, provider, subject_id, amount_minor, currency, status, created_at, updated_at
		FROM payment_sessions
		WHERE order_id = $1`

	var sess Session
	err := s.pool.QueryRow(ctx, q, orderID).Scan(
		&sess.OrderID, &sess.Provider, &sess.SubjectID, &sess.AmountMinor,
		&sess.Currency, &sess.Status, &sess.CreatedAt, &sess.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("billing: get session: %w", err)
	}
	return &sess, nil
}

// MarkConfirmed relies on the conditional update so two racing
// confirmations of the same order resolve to exactly one grant.
func (s *PGSessionStore) MarkConfirmed(ctx context.Context, orderID string) (bool, error) {
	const q = `
		UPDATE payment_sessions
		SET status = $2, updated_at = now()
		WHERE order_id = $1 AND status <> $2`

	tag, err := s.pool.Exec(ctx, q, orderID, StatusConfirmed)
	if err != nil {
		return false, fmt.Errorf("billing: mark session confirmed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGSessionStore) MarkFailed(ctx context.Context, orderID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE payment_sessions SET status = $2, updated_at = now() WHERE order_id = $1`,
		orderID, StatusFailed)
	if err != nil {
		return fmt.Errorf("billing: mark session failed: %w", err)
	}
	return nil
}

// MemorySessionStore is an in-memory SessionStore for tests and local
// development.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session)}
}

func (s *MemorySessionStore) Save(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *sess
	now := time.Now().UTC()
	if existing, ok := s.sessions[sess.OrderID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.sessions[sess.OrderID] = stored
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, orderID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[orderID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (s *MemorySessionStore) MarkConfirmed(_ context.Context, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[orderID]
	if !ok || sess.Status == StatusConfirmed {
		return false, nil
	}
	sess.Status = StatusConfirmed
	sess.UpdatedAt = time.Now().UTC()
	s.sessions[orderID] = sess
	return true, nil
}

func (s *MemorySessionStore) MarkFailed(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[orderID]; ok {
		sess.Status = StatusFailed
		sess.UpdatedAt = time.Now().UTC()
		s.sessions[orderID] = sess
	}
	return nil
}
