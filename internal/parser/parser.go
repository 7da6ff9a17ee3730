// Package parser turns free-form recipient text into a RecipientList.
package parser

import (
	"regexp"
	"strings"

	"github.com/openbuilders/ft-multisender/internal/types"

	"github.com/shopspring/decimal"
)

var (
	// account: first character alphanumeric, then alphanumerics, '.', '_', '-'
	// separator: tab, comma, pipe, equals sign or a single space
	// amount: digits with '.' or ',' as the decimal point
	recipientPattern = regexp.MustCompile(`^([0-9a-zA-Z][_\-0-9a-zA-Z.]*)[\t,|= ]([0-9.,]+)$`)
	separatorRun     = regexp.MustCompile(`[, ]+`)
	lineBreak        = regexp.MustCompile(`\r\n|\r|\n`)
	numericPrefix    = regexp.MustCompile(`^[0-9]*\.?[0-9]*`)
)

// Parse extracts `account amount` pairs from text, one per line. Lines that do
// not match are skipped, duplicate accounts are summed and zero amounts are
// dropped. Parse never fails; an unusable input yields an empty list.
func Parse(text string) *types.RecipientList {
	list := types.NewRecipientList()

	for _, line := range lineBreak.Split(text, -1) {
		accountID, amount, ok := parseLine(line)
		if !ok {
			continue
		}

		list.Add(accountID, amount)
	}

	return list
}

// Format renders the list back into the `account amount` text form.
func Format(list *types.RecipientList) string {
	var sb strings.Builder

	for _, entry := range list.Entries() {
		sb.WriteString(entry.AccountID)
		sb.WriteByte(' ')
		sb.WriteString(entry.Amount.String())
		sb.WriteByte('\n')
	}

	return sb.String()
}

func parseLine(line string) (string, decimal.Decimal, bool) {
	match := recipientPattern.FindStringSubmatch(line)
	if match == nil {
		// a line like "c.near|1,5" has to be tried before the comma is
		// collapsed into a separator
		match = recipientPattern.FindStringSubmatch(normalize(line))
	}
	if match == nil {
		return "", decimal.Zero, false
	}

	amount, ok := parseAmount(match[2])
	if !ok || !amount.IsPositive() {
		return "", decimal.Zero, false
	}

	return strings.ToLower(match[1]), amount, true
}

func normalize(line string) string {
	return strings.TrimSpace(separatorRun.ReplaceAllString(line, " "))
}

// parseAmount reads the longest leading decimal number, the way a float
// parser accepting a prefix would: "1.2.3" is 1.2.
func parseAmount(token string) (decimal.Decimal, bool) {
	token = strings.Replace(token, ",", ".", 1)

	prefix := strings.TrimSuffix(numericPrefix.FindString(token), ".")
	if prefix == "" || prefix == "." {
		return decimal.Zero, false
	}
	if strings.HasPrefix(prefix, ".") {
		prefix = "0" + prefix
	}

	amount, err := decimal.NewFromString(prefix)
	if err != nil {
		return decimal.Zero, false
	}

	return amount, true
}
