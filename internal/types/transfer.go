package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BatchStatus string

const (
	StatusPending BatchStatus = "pending"
	StatusSuccess BatchStatus = "success"
	StatusError   BatchStatus = "error"
)

// SendMode selects the contract method used to dispatch a batch.
type SendMode string

const (
	// ModeUnsafe ignores the per-transfer status, cheaper on gas.
	ModeUnsafe SendMode = "unsafe"
	// ModeSafe refunds the deposit for every failed transfer in a callback.
	ModeSafe SendMode = "safe"
)

// Transfer is a single recipient as the contract sees it. Amount is the native
// smallest-unit integer string.
type Transfer struct {
	AccountID string `json:"account_id" csv:"account_id"`
	Amount    string `json:"amount" csv:"amount"`
}

type Batch struct {
	Index     int
	Transfers []Transfer
}

// GetTotalNative sums the native amounts of the batch. Malformed amounts are
// counted as zero.
func (b *Batch) GetTotalNative() decimal.Decimal {
	total := decimal.Zero

	for _, tr := range b.Transfers {
		amount, err := decimal.NewFromString(tr.Amount)
		if err != nil {
			continue
		}
		total = total.Add(amount)
	}

	return total
}

// SendResult describes the outcome of a single send run.
type SendResult struct {
	RunID     uuid.UUID `json:"run_id"`
	Mode      SendMode  `json:"mode"`
	Batches   int       `json:"batches"`
	Processed int       `json:"processed"`
	Sent      int       `json:"sent"`
	// FailedBatch is the index of the batch that was rejected, -1 otherwise.
	FailedBatch int       `json:"failed_batch"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}
