package validator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/openbuilders/ft-multisender/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChecker answers from a fixed table, failing for accounts prefixed with
// "err" and tracking how many checks ran at the same time.
type fakeChecker struct {
	existing map[string]bool

	mu       sync.Mutex
	calls    []string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeChecker) AccountExists(ctx context.Context, accountID string) (bool, error) {
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if current <= seen || f.maxSeen.CompareAndSwap(seen, current) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, accountID)
	f.mu.Unlock()

	if strings.HasPrefix(accountID, "err") {
		return false, errors.New("rpc unavailable")
	}

	return f.existing[accountID], nil
}

func newList(accounts ...string) *types.RecipientList {
	list := types.NewRecipientList()
	for i, accountID := range accounts {
		list.Add(accountID, decimal.NewFromInt(int64(i+1)))
	}
	return list
}

func TestValidate_FiltersMissingAndFailedAccounts(t *testing.T) {
	checker := &fakeChecker{existing: map[string]bool{
		"a.near": true,
		"c.near": true,
		"d.near": true,
	}}
	v := New(&Config{GroupSize: 2}, checker)

	input := newList("a.near", "b.near", "c.near", "err.near", "d.near")

	valid, removed, err := v.Validate(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.near", "c.near", "d.near"}, valid.Accounts())
	assert.Equal(t, 2, removed)
	assert.Equal(t, input.Len(), removed+valid.Len())

	// amounts are preserved and the total follows the surviving entries
	amount, _ := valid.Get("d.near")
	assert.True(t, amount.Equal(decimal.NewFromInt(5)))
	assert.True(t, valid.Total().Equal(decimal.NewFromInt(1+3+5)))
}

func TestValidate_GroupsBoundConcurrency(t *testing.T) {
	existing := make(map[string]bool)
	accounts := make([]string, 0, 25)
	for i := 0; i < 25; i++ {
		accountID := fmt.Sprintf("user%d.near", i)
		accounts = append(accounts, accountID)
		existing[accountID] = true
	}

	checker := &fakeChecker{existing: existing}
	v := New(&Config{GroupSize: 10}, checker)

	valid, removed, err := v.Validate(context.Background(), newList(accounts...))
	require.NoError(t, err)

	assert.Equal(t, 0, removed)
	assert.Equal(t, accounts, valid.Accounts())
	assert.Len(t, checker.calls, 25)
	assert.LessOrEqual(t, checker.maxSeen.Load(), int32(10))
}

func TestValidate_RemovedCountForAnyMix(t *testing.T) {
	checker := &fakeChecker{existing: map[string]bool{"ok1": true, "ok2": true}}
	v := New(&Config{}, checker)

	input := newList("ok1", "missing", "err1", "ok2", "err2", "missing2")

	valid, removed, err := v.Validate(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 4, removed)
	assert.Equal(t, input.Len(), removed+valid.Len())
}

func TestValidate_EmptyList(t *testing.T) {
	v := New(&Config{GroupSize: 3}, &fakeChecker{})

	valid, removed, err := v.Validate(context.Background(), types.NewRecipientList())
	require.NoError(t, err)

	assert.Equal(t, 0, valid.Len())
	assert.Equal(t, 0, removed)
}

func TestValidate_CancelledContext(t *testing.T) {
	v := New(&Config{GroupSize: 1}, &fakeChecker{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := v.Validate(ctx, newList("a.near"))
	assert.ErrorIs(t, err, context.Canceled)
}

// cancellingChecker cancels the run on its first check and then fails like an
// RPC call whose context went away.
type cancellingChecker struct {
	cancel context.CancelFunc
	once   sync.Once
}

func (c *cancellingChecker) AccountExists(ctx context.Context, accountID string) (bool, error) {
	c.once.Do(c.cancel)
	<-ctx.Done()
	return false, ctx.Err()
}

func TestValidate_CancelledDuringGroup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	v := New(&Config{GroupSize: 500}, &cancellingChecker{cancel: cancel})

	valid, removed, err := v.Validate(ctx, newList("a.near", "b.near", "c.near"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, valid)
	assert.Equal(t, 0, removed)
}
