package batcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openbuilders/ft-multisender/internal/errors"
	"github.com/openbuilders/ft-multisender/internal/metrics"
	"github.com/openbuilders/ft-multisender/internal/store"
	"github.com/openbuilders/ft-multisender/internal/types"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	DefaultChunkSize     = 100
	DefaultSafeChunkSize = 7
)

type Config struct {
	ChunkSize     int
	SafeChunkSize int
	// BatchDelay is the pause between two confirmed batches.
	BatchDelay   time.Duration
	Decimals     int32
	StoreTimeout time.Duration
}

// Contract is the batch-send side of the multisender contract.
type Contract interface {
	MultisendFromBalance(context.Context, []types.Transfer) error
	MultisendFromBalanceUnsafe(context.Context, []types.Transfer) error
}

// Recorder keeps a log of batch outcomes. Optional.
type Recorder interface {
	RecordBatch(ctx context.Context, runID uuid.UUID, batch types.Batch,
		status types.BatchStatus, reason string) error
}

// ProgressFunc is called after every confirmed batch.
type ProgressFunc func(processed, total int)

// Batcher drains a recipient list through the contract in fixed-size batches,
// one at a time, keeping the not yet confirmed suffix in the store so an
// interrupted run can be resumed.
type Batcher struct {
	config   *Config
	contract Contract
	store    store.Store
	recorder Recorder
	log      *slog.Logger
}

func New(config *Config, contract Contract, store store.Store) *Batcher {
	return &Batcher{
		config:   config,
		contract: contract,
		store:    store,
		log:      slog.With("component", "batcher"),
	}
}

func (b *Batcher) WithRecorder(recorder Recorder) *Batcher {
	b.recorder = recorder
	return b
}

// Partition splits transfers into consecutive batches of at most size
// entries.
func Partition(transfers []types.Transfer, size int) []types.Batch {
	if size <= 0 {
		size = DefaultChunkSize
	}

	chunks := lo.Chunk(transfers, size)
	batches := make([]types.Batch, len(chunks))
	for i, chunk := range chunks {
		batches[i] = types.Batch{Index: i, Transfers: chunk}
	}

	return batches
}

func (b *Batcher) ChunkSize(mode types.SendMode) int {
	if mode == types.ModeSafe {
		if b.config.SafeChunkSize > 0 {
			return b.config.SafeChunkSize
		}
		return DefaultSafeChunkSize
	}

	if b.config.ChunkSize > 0 {
		return b.config.ChunkSize
	}
	return DefaultChunkSize
}

// Send converts the list to native amounts and sends it.
func (b *Batcher) Send(ctx context.Context, key string, list *types.RecipientList,
	mode types.SendMode, progress ProgressFunc) (*types.SendResult, error) {

	return b.run(ctx, key, types.ToTransfers(list, b.config.Decimals), mode, progress)
}

// Resume sends exactly the transfers persisted under key.
func (b *Batcher) Resume(ctx context.Context, key string, mode types.SendMode,
	progress ProgressFunc) (*types.SendResult, error) {

	transfers, err := b.Pending(ctx, key)
	if err != nil {
		return nil, err
	}

	b.log.Info("Resuming a send", "key", key, "pending", len(transfers))

	return b.run(ctx, key, transfers, mode, progress)
}

// Pending loads the persisted not yet sent transfers.
func (b *Batcher) Pending(ctx context.Context, key string) ([]types.Transfer, error) {
	ctxWithTimeout, cancel := b.storeContext(ctx)
	defer cancel()

	raw, err := b.store.Get(ctxWithTimeout, key)
	if err != nil {
		return nil, errors.New(errors.StoreFailure, "couldn't load pending transfers", err)
	}

	transfers := []types.Transfer{}
	if raw == "" {
		return transfers, nil
	}

	err = json.Unmarshal([]byte(raw), &transfers)
	if err != nil {
		return nil, errors.New(errors.StoreFailure, "pending transfers are corrupted", err)
	}

	if transfers == nil {
		transfers = []types.Transfer{}
	}

	return transfers, nil
}

func (b *Batcher) run(ctx context.Context, key string, transfers []types.Transfer,
	mode types.SendMode, progress ProgressFunc) (*types.SendResult, error) {

	chunkSize := b.ChunkSize(mode)
	batches := Partition(transfers, chunkSize)

	result := &types.SendResult{
		RunID:       uuid.New(),
		Mode:        mode,
		Batches:     len(batches),
		FailedBatch: -1,
		StartedAt:   time.Now(),
	}
	defer func() {
		result.FinishedAt = time.Now()
	}()

	log := b.log.With("run", result.RunID, "mode", mode)
	log.Info("Starting a send", "transfers", len(transfers), "batches", len(batches))

	// the whole list is the recovery baseline, nothing is confirmed yet
	err := b.persist(ctx, key, transfers)
	if err != nil {
		return result, err
	}

	for i, batch := range batches {
		log.Debug("Sending a batch", "batch", i, "size", len(batch.Transfers))

		err = b.dispatch(ctx, mode, batch.Transfers)
		if err != nil {
			metrics.BatchesFailed.WithLabelValues(string(mode)).Inc()
			b.record(ctx, result.RunID, batch, types.StatusError, err.Error())

			log.Error("Batch rejected", "batch", i, "error", err)

			result.FailedBatch = i
			return result, errors.New(
				errors.ContractCallFailure,
				fmt.Sprintf("batch %d of %d failed", i+1, len(batches)),
				err,
			)
		}

		b.record(ctx, result.RunID, batch, types.StatusSuccess, "")

		metrics.BatchesSent.WithLabelValues(string(mode)).Inc()
		metrics.RecipientsSent.Add(float64(len(batch.Transfers)))

		// confirmed, drop the batch from the checkpoint before the next one
		end := min((i+1)*chunkSize, len(transfers))
		err = b.persist(ctx, key, transfers[end:])
		if err != nil {
			return result, err
		}

		result.Processed = i + 1
		result.Sent += len(batch.Transfers)

		if progress != nil {
			progress(result.Processed, len(batches))
		}

		if i == len(batches)-1 {
			break
		}

		select {
		case <-ctx.Done():
			log.Info("Send interrupted", "processed", result.Processed)
			return result, ctx.Err()
		case <-time.After(b.config.BatchDelay):
		}
	}

	log.Info("Send completed", "sent", result.Sent, "batches", result.Batches)

	return result, nil
}

func (b *Batcher) dispatch(ctx context.Context, mode types.SendMode,
	transfers []types.Transfer) error {

	if mode == types.ModeSafe {
		return b.contract.MultisendFromBalance(ctx, transfers)
	}

	return b.contract.MultisendFromBalanceUnsafe(ctx, transfers)
}

func (b *Batcher) persist(ctx context.Context, key string, transfers []types.Transfer) error {
	data, err := json.Marshal(transfers)
	if err != nil {
		return fmt.Errorf("marshal pending transfers: %w", err)
	}

	// a confirmed batch must leave the checkpoint even during shutdown
	ctxWithTimeout, cancel := b.storeContext(context.WithoutCancel(ctx))
	defer cancel()

	err = b.store.Set(ctxWithTimeout, key, string(data))
	if err != nil {
		b.log.Error("couldn't persist pending transfers", "key", key, "error", err)
		return errors.New(errors.StoreFailure, "couldn't persist pending transfers", err)
	}

	metrics.PendingRecipients.Set(float64(len(transfers)))

	return nil
}

func (b *Batcher) record(ctx context.Context, runID uuid.UUID, batch types.Batch,
	status types.BatchStatus, reason string) {

	if b.recorder == nil {
		return
	}

	ctxWithTimeout, cancel := b.storeContext(ctx)
	defer cancel()

	err := b.recorder.RecordBatch(ctxWithTimeout, runID, batch, status, reason)
	if err != nil {
		b.log.Warn("couldn't record batch", "run", runID, "batch", batch.Index, "error", err)
	}
}

func (b *Batcher) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.config.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.config.StoreTimeout)
}
