package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Postgres struct {
	pg          *pgxpool.Pool
	pingTimeout time.Duration
	log         *slog.Logger
}

// Connect opens a pool and waits until the database answers.
func Connect(ctx context.Context, url string, pingTimeout time.Duration) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("couldn't create pool: %w", err)
	}

	p := New(pool, pingTimeout)
	if err := p.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres is not reachable: %w", err)
	}

	return p, nil
}

func New(pool *pgxpool.Pool, pingTimeout time.Duration) *Postgres {
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}

	return &Postgres{
		pg:          pool,
		pingTimeout: pingTimeout,
		log:         slog.With("component", "db"),
	}
}

func (p *Postgres) Close() {
	p.pg.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	ticker := time.NewTicker(p.pingTimeout)
	defer ticker.Stop()

	var err error
	// Ping 3 times with a specified time interval.
	for i := 1; i <= 3; i++ {
		// A failing ping may hang, so it is bounded slightly below the
		// interval.
		pingCtx, cancel := context.WithTimeout(ctx, p.pingTimeout-time.Millisecond*10)
		if err = p.pg.Ping(pingCtx); err == nil {
			cancel()

			return nil
		}
		p.log.Info("ping attempt was not successful", "attempt", i, "error", err)
		cancel()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return err
}
