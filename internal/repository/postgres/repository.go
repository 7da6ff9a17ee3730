package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/openbuilders/ft-multisender/internal/repository/postgres/model"
	"github.com/openbuilders/ft-multisender/internal/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	DuplicateKeyValue string = "23505"
)

var (
	ErrDuplicateKeyValue = errors.New("duplicate key value")
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS batch_log (
		run_id      UUID        NOT NULL,
		batch_index INTEGER     NOT NULL,
		status      TEXT        NOT NULL,
		recipients  INTEGER     NOT NULL,
		total       NUMERIC     NOT NULL,
		reason      TEXT        NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (run_id, batch_index)
	)`,
	`CREATE TABLE IF NOT EXISTS batch_transfer (
		run_id      UUID    NOT NULL,
		batch_index INTEGER NOT NULL,
		account_id  TEXT    NOT NULL,
		amount      NUMERIC NOT NULL
	)`,
}

func (p *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.pg.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Get returns the stored value or an empty string when the key is missing.
func (p *Postgres) Get(ctx context.Context, key string) (string, error) {
	var value string

	err := p.pg.QueryRow(ctx, `SELECT value FROM kv WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get %s: %w", key, err)
	}

	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key, value string) error {
	_, err := p.pg.Exec(ctx, `
		INSERT INTO kv (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	return nil
}

// RecordBatch stores the outcome of a batch together with its transfers.
func (p *Postgres) RecordBatch(ctx context.Context, runID uuid.UUID, batch types.Batch,
	status types.BatchStatus, reason string) error {

	tx, err := p.pg.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO batch_log (run_id, batch_index, status, recipients, total, reason)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		runID, batch.Index, string(status), len(batch.Transfers),
		batch.GetTotalNative().String(), reason,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == DuplicateKeyValue {
			return ErrDuplicateKeyValue
		}
		return fmt.Errorf("couldn't record batch: %w", err)
	}

	fields := []string{"run_id", "batch_index", "account_id", "amount"}
	rows := make([][]any, len(batch.Transfers))
	for i, tr := range batch.Transfers {
		rows[i] = []any{runID, batch.Index, tr.AccountID, tr.Amount}
	}

	p.log.Debug("COPY", "fields", fields, "rows", len(rows))
	inserted, err := tx.CopyFrom(ctx, pgx.Identifier{"batch_transfer"}, fields,
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("couldn't persist batch transfers: %w", err)
	}

	if int(inserted) != len(rows) {
		return fmt.Errorf("persist batch %d: %d of %d rows inserted",
			batch.Index, inserted, len(rows))
	}

	return tx.Commit(ctx)
}

// ListBatches returns the batch log of a run ordered by batch index.
func (p *Postgres) ListBatches(ctx context.Context, runID uuid.UUID) (
	[]model.BatchLogEntry, error) {

	rows, err := p.pg.Query(ctx, `
		SELECT run_id::text AS run_id, batch_index, status, recipients,
		       total::text AS total, reason, created_at
		FROM batch_log
		WHERE run_id = $1
		ORDER BY batch_index`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}

	entries, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.BatchLogEntry])
	if err != nil {
		return nil, fmt.Errorf("collect batches: %w", err)
	}

	return entries, nil
}
