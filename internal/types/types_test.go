package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecipientList_AddSumsAndKeepsOrder(t *testing.T) {
	list := NewRecipientList()
	list.Add("b.near", decimal.RequireFromString("1"))
	list.Add("A.near", decimal.RequireFromString("2.5"))
	list.Add("b.near", decimal.RequireFromString("0.5"))

	assert.Equal(t, []string{"b.near", "a.near"}, list.Accounts())
	assert.Equal(t, 2, list.Len())

	amount, ok := list.Get("B.NEAR")
	require.True(t, ok)
	assert.True(t, amount.Equal(decimal.RequireFromString("1.5")), amount.String())
	assert.True(t, list.Total().Equal(decimal.RequireFromString("4")), list.Total().String())
}

func TestRecipientList_FilterRecomputesTotal(t *testing.T) {
	list := NewRecipientList()
	list.Add("a.near", decimal.NewFromInt(1))
	list.Add("b.near", decimal.NewFromInt(2))
	list.Add("c.near", decimal.NewFromInt(3))

	filtered := list.Filter(func(accountID string) bool {
		return accountID != "b.near"
	})

	assert.Equal(t, []string{"a.near", "c.near"}, filtered.Accounts())
	assert.True(t, filtered.Total().Equal(decimal.NewFromInt(4)))
	// the source list is left untouched
	assert.Equal(t, 3, list.Len())
}

func TestRecipientList_NilIsEmpty(t *testing.T) {
	var list *RecipientList

	assert.Equal(t, 0, list.Len())
	assert.True(t, list.Total().IsZero())
	assert.Empty(t, list.Entries())
}

func TestRecipientList_MarshalJSON(t *testing.T) {
	list := NewRecipientList()
	list.Add("a.near", decimal.RequireFromString("1.25"))

	data, err := json.Marshal(list)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"account_id":"a.near","amount":"1.25"}]`, string(data))
}

func TestToNative(t *testing.T) {
	cases := []struct {
		amount string
		want   string
	}{
		{"1", "1000000000000000000"},
		{"2.5", "2500000000000000000"},
		{"0.000000000000000001", "1"},
		{"0.0000000000000000019", "1"},
	}

	for _, tc := range cases {
		got := ToNative(decimal.RequireFromString(tc.amount), DefaultDecimals)
		assert.Equal(t, tc.want, got, tc.amount)
	}
}

func TestFromNative(t *testing.T) {
	amount, err := FromNative("1500000000000000000", DefaultDecimals)
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.RequireFromString("1.5")))

	amount, err = FromNative("", DefaultDecimals)
	require.NoError(t, err)
	assert.True(t, amount.IsZero())

	_, err = FromNative("12abc", DefaultDecimals)
	assert.Error(t, err)
}

func TestTransfersRoundTrip(t *testing.T) {
	list := NewRecipientList()
	list.Add("a.near", decimal.RequireFromString("3.141592"))
	list.Add("b.near", decimal.RequireFromString("2.7182"))

	transfers := ToTransfers(list, DefaultDecimals)
	require.Len(t, transfers, 2)
	assert.Equal(t, Transfer{AccountID: "a.near", Amount: "3141592000000000000"}, transfers[0])

	back, err := FromTransfers(transfers, DefaultDecimals)
	require.NoError(t, err)
	assert.Equal(t, list.Accounts(), back.Accounts())
	assert.True(t, list.Total().Equal(back.Total()))
	assert.Equal(t, transfers, ToTransfers(back, DefaultDecimals))
}

func TestBatch_GetTotalNative(t *testing.T) {
	batch := Batch{Transfers: []Transfer{
		{AccountID: "a", Amount: "10"},
		{AccountID: "b", Amount: "5"},
		{AccountID: "c", Amount: "oops"},
	}}

	assert.True(t, batch.GetTotalNative().Equal(decimal.NewFromInt(15)))
}
