package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// RetryOptions controls how NewPool retries an unreachable database.
type RetryOptions struct {
	// Attempts is the number of connection attempts; values below 1 mean 1.
	Attempts int
	// BaseBackoff is the wait after the first failure, doubled after each one.
	BaseBackoff time.Duration
	// MaxBackoff caps the wait between attempts. Zero means no cap.
	MaxBackoff time.Duration
}

// DefaultRetryOptions waits 1s, 2s, 4s, 8s between five attempts.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{Attempts: 5, BaseBackoff: time.Second, MaxBackoff: 16 * time.Second}
}

// backoff returns the wait after the given zero-based failed attempt.
func (o RetryOptions) backoff(attempt int) time.Duration {
	d := o.BaseBackoff << attempt
	if o.MaxBackoff > 0 && (d > o.MaxBackoff || d <= 0) {
		return o.MaxBackoff
	}
	return d
}

// NewPool creates a PostgreSQL connection pool, retrying with exponential
// backoff until a ping succeeds. A malformed DSN fails immediately.
func NewPool(ctx context.Context, dsn string, opts RetryOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		var pool *pgxpool.Pool
		pool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				log.Info().
					Str("host", cfg.ConnConfig.Host).
					Str("database", cfg.ConnConfig.Database).
					Int32("max_conns", cfg.MaxConns).
					Msg("database connection established")
				return pool, nil
			} else {
				pool.Close()
				err = fmt.Errorf("ping failed: %w", pingErr)
			}
		}

		if attempt == attempts-1 {
			break
		}

		wait := opts.backoff(attempt)
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", attempts).
			Dur("next_retry_in", wait).
			Msg("database connection failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", attempts, err)
}
