package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the decimal precision of the token the multisender was
// deployed for.
const DefaultDecimals int32 = 18

// ToNative converts a whole-token amount to the smallest-unit integer string,
// truncating anything below one unit.
func ToNative(amount decimal.Decimal, decimals int32) string {
	return amount.Shift(decimals).Truncate(0).String()
}

// FromNative converts a smallest-unit integer string back to whole tokens.
func FromNative(native string, decimals int32) (decimal.Decimal, error) {
	if native == "" {
		return decimal.Zero, nil
	}

	amount, err := decimal.NewFromString(native)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid native amount %q: %w", native, err)
	}

	return amount.Shift(-decimals), nil
}

func ToTransfers(list *RecipientList, decimals int32) []Transfer {
	transfers := make([]Transfer, 0, list.Len())

	for _, entry := range list.Entries() {
		transfers = append(transfers, Transfer{
			AccountID: entry.AccountID,
			Amount:    ToNative(entry.Amount, decimals),
		})
	}

	return transfers
}

func FromTransfers(transfers []Transfer, decimals int32) (*RecipientList, error) {
	list := NewRecipientList()

	for _, tr := range transfers {
		amount, err := FromNative(tr.Amount, decimals)
		if err != nil {
			return nil, fmt.Errorf("transfer to %s: %w", tr.AccountID, err)
		}
		list.Add(tr.AccountID, amount)
	}

	return list, nil
}
