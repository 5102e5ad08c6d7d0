package chart

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory chart store for tests and local
// development.
type MemoryStore struct {
	mu     sync.Mutex
	charts map[string]Chart
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{charts: make(map[string]Chart)}
}

func (s *MemoryStore) Create(_ context.Context, c *Chart) (*Chart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *c
	stored.ID = uuid.NewString()
	stored.CreatedAt = time.Now().UTC()
	s.charts[stored.ID] = stored
	return &stored, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*Chart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.charts[id]
	if !ok {
		return nil, ErrChartNotFound
	}
	return &c, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]Chart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var charts []Chart
	for _, c := range s.charts {
		if c.UserID == userID {
			charts = append(charts, c)
		}
	}
	sort.Slice(charts, func(i, j int) bool {
		return charts[i].CreatedAt.After(charts[j].CreatedAt)
	})
	return charts, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.charts[id]; !ok {
		return ErrChartNotFound
	}
	delete(s.charts, id)
	return nil
}

// MemoryTemplateStore is an in-memory template catalog for tests.
type MemoryTemplateStore struct {
	mu        sync.Mutex
	templates map[string]Template
}

func NewMemoryTemplateStore(templates ...Template) *MemoryTemplateStore {
	s := &MemoryTemplateStore{templates: make(map[string]Template)}
	for _, t := range templates {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		s.templates[t.ID] = t
	}
	return s
}

func (s *MemoryTemplateStore) List(_ context.Context) ([]Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	templates := make([]Template, 0, len(s.templates))
	for _, t := range s.templates {
		templates = append(templates, t)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates, nil
}

func (s *MemoryTemplateStore) ListPublic(ctx context.Context) ([]Template, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	public := all[:0:0]
	for _, t := range all {
		if !t.IsPremium {
			public = append(public, t)
		}
	}
	return public, nil
}

func (s *MemoryTemplateStore) GetByID(_ context.Context, id string) (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	return &t, nil
}
