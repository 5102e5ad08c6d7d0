package account_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volkanerene/chartizy-backend2/internal/account"
)

// failingStore simulates an unavailable directory.
type failingStore struct{}

func (failingStore) GetByID(context.Context, string) (*account.Account, error) {
	return nil, errors.New("storage unavailable")
}

func (failingStore) Create(context.Context, string, string) (*account.Account, error) {
	return nil, errors.New("storage unavailable")
}

func (failingStore) UpdateTier(context.Context, string, account.Tier) error {
	return errors.New("storage unavailable")
}

func (failingStore) UpdateChartCount(context.Context, string, int) error {
	return errors.New("storage unavailable")
}

func (failingStore) UpdateProfile(context.Context, string, *string, *string) error {
	return errors.New("storage unavailable")
}

func TestResolver(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates account on first access", func(t *testing.T) {
		t.Parallel()
		store := account.NewMemoryStore()
		r := account.NewResolver(store, nil)

		a := r.Resolve(ctx, "u1", "a@b.com")
		require.NotNil(t, a)
		assert.Equal(t, "u1", a.ID)
		assert.Equal(t, "a@b.com", a.Email)
		assert.Equal(t, account.TierFree, a.SubscriptionTier)
		assert.Zero(t, a.ChartCount)

		stored, err := store.GetByID(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, a.ID, stored.ID)
	})

	t.Run("returns existing account", func(t *testing.T) {
		t.Parallel()
		store := account.NewMemoryStore()
		_, err := store.Create(ctx, "u2", "b@c.com")
		require.NoError(t, err)
		require.NoError(t, store.UpdateTier(ctx, "u2", account.TierPro))

		r := account.NewResolver(store, nil)
		a := r.Resolve(ctx, "u2", "b@c.com")
		assert.Equal(t, account.TierPro, a.SubscriptionTier)
	})

	t.Run("degrades to default view when storage fails", func(t *testing.T) {
		t.Parallel()
		r := account.NewResolver(failingStore{}, nil)

		a := r.Resolve(ctx, "u3", "c@d.com")
		require.NotNil(t, a)
		assert.Equal(t, "u3", a.ID)
		assert.Equal(t, "c@d.com", a.Email)
		assert.Equal(t, account.TierFree, a.SubscriptionTier)
		assert.Zero(t, a.ChartCount)
	})
}

func TestMemoryStoreConcurrentCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := account.NewMemoryStore()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Create(ctx, "u1", "a@b.com")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	a, err := store.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", a.ID)
	assert.Equal(t, account.TierFree, a.SubscriptionTier)
	assert.Zero(t, a.ChartCount)
}

func TestMemoryStoreProfileUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := account.NewMemoryStore()
	_, err := store.Create(ctx, "u1", "a@b.com")
	require.NoError(t, err)

	first := "Ada"
	require.NoError(t, store.UpdateProfile(ctx, "u1", &first, nil))

	a, err := store.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", a.FirstName)
	assert.Empty(t, a.LastName)

	// Absent fields stay untouched.
	last := "Lovelace"
	require.NoError(t, store.UpdateProfile(ctx, "u1", nil, &last))

	a, err = store.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", a.FirstName)
	assert.Equal(t, "Lovelace", a.LastName)
}
