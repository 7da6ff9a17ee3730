package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := New()

	value, err := s.Get(ctx, "accounts")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, s.Set(ctx, "accounts", `[{"account_id":"a","amount":"1"}]`))
	require.NoError(t, s.Set(ctx, "accounts", `[]`))

	value, err = s.Get(ctx, "accounts")
	require.NoError(t, err)
	assert.Equal(t, `[]`, value)
	assert.NoError(t, s.Ping(ctx))
}
