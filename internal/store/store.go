// Package store defines the durable key-value store used to checkpoint the
// recipients that are not sent yet.
package store

import (
	"context"
)

// ProgressKey holds the JSON array of not yet sent transfers.
const ProgressKey = "accounts"

// Store is a persisted string store. Get returns an empty string for a
// missing key. Set fully replaces the previous value.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// KeyFor scopes the progress key to a sender account so several accounts can
// share one store.
func KeyFor(accountID string) string {
	if accountID == "" {
		return ProgressKey
	}
	return ProgressKey + ":" + accountID
}
