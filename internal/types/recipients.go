package types

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

type Recipient struct {
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// RecipientList is an insertion-ordered mapping of lowercased account IDs to
// amounts in whole tokens. The running total always matches the entries.
type RecipientList struct {
	order   []string
	amounts map[string]decimal.Decimal
	total   decimal.Decimal
}

func NewRecipientList() *RecipientList {
	return &RecipientList{
		amounts: make(map[string]decimal.Decimal),
	}
}

// Add accumulates amount for the account, appending it if it is new.
func (l *RecipientList) Add(accountID string, amount decimal.Decimal) {
	accountID = strings.ToLower(accountID)

	current, ok := l.amounts[accountID]
	if !ok {
		l.order = append(l.order, accountID)
	}

	l.amounts[accountID] = current.Add(amount)
	l.total = l.total.Add(amount)
}

func (l *RecipientList) Get(accountID string) (decimal.Decimal, bool) {
	if l == nil {
		return decimal.Zero, false
	}

	amount, ok := l.amounts[strings.ToLower(accountID)]
	return amount, ok
}

func (l *RecipientList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.order)
}

func (l *RecipientList) Total() decimal.Decimal {
	if l == nil {
		return decimal.Zero
	}
	return l.total
}

// Accounts returns the account IDs in insertion order.
func (l *RecipientList) Accounts() []string {
	if l == nil {
		return nil
	}

	accounts := make([]string, len(l.order))
	copy(accounts, l.order)
	return accounts
}

func (l *RecipientList) Entries() []Recipient {
	if l == nil {
		return []Recipient{}
	}

	entries := make([]Recipient, 0, len(l.order))
	for _, accountID := range l.order {
		entries = append(entries, Recipient{
			AccountID: accountID,
			Amount:    l.amounts[accountID],
		})
	}

	return entries
}

// Filter returns a new list with the entries for which keep returns true,
// preserving the order.
func (l *RecipientList) Filter(keep func(accountID string) bool) *RecipientList {
	filtered := NewRecipientList()

	for _, entry := range l.Entries() {
		if keep(entry.AccountID) {
			filtered.Add(entry.AccountID, entry.Amount)
		}
	}

	return filtered
}

// Merge adds every entry of other into l, summing duplicates.
func (l *RecipientList) Merge(other *RecipientList) {
	for _, entry := range other.Entries() {
		l.Add(entry.AccountID, entry.Amount)
	}
}

func (l *RecipientList) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Entries())
}
