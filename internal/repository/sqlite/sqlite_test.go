package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_InMemory(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	value, err := s.Get(ctx, "accounts")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, s.Set(ctx, "accounts", `[{"account_id":"a.near","amount":"1"}]`))
	require.NoError(t, s.Set(ctx, "accounts", `[]`))
	require.NoError(t, s.Set(ctx, "accounts:bob.near", `[{"account_id":"c.near","amount":"2"}]`))

	value, err = s.Get(ctx, "accounts")
	require.NoError(t, err)
	assert.Equal(t, `[]`, value)

	value, err = s.Get(ctx, "accounts:bob.near")
	require.NoError(t, err)
	assert.Contains(t, value, "c.near")

	assert.NoError(t, s.Ping(ctx))
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "progress.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "accounts", `[{"account_id":"a.near","amount":"5"}]`))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	value, err := s.Get(ctx, "accounts")
	require.NoError(t, err)
	assert.Equal(t, `[{"account_id":"a.near","amount":"5"}]`, value)
}
