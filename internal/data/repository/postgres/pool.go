package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ErrConnectionUnavailable is returned once every connect attempt has been
// exhausted. It is fatal to the whole run; nothing is ever attempted on a
// database we could not reach.
var ErrConnectionUnavailable = errors.New("database connection unavailable")

// ConnectOptions bounds the pool and the retry loop. Migrations are serial,
// so MaxConns is typically 1.
type ConnectOptions struct {
	MaxConns       int32
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
}

// Connect opens a bounded pool, retrying up to MaxRetries times with a fixed
// delay. Each attempt is capped by ConnectTimeout and verified with a ping.
func Connect(ctx context.Context, connString string, opts ConnectOptions) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = opts.MaxConns
	poolConfig.MaxConnIdleTime = opts.IdleTimeout
	poolConfig.ConnConfig.ConnectTimeout = opts.ConnectTimeout

	var lastErr error
	attempts := opts.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		pool, err := tryConnect(ctx, poolConfig, opts.ConnectTimeout)
		if err == nil {
			return pool, nil
		}
		lastErr = err

		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("maxAttempts", attempts).
			Msg("database connection attempt failed")

		if attempt < attempts {
			select {
			case <-time.After(opts.RetryDelay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrConnectionUnavailable, ctx.Err())
			}
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrConnectionUnavailable, attempts, lastErr)
}

func tryConnect(ctx context.Context, poolConfig *pgxpool.Config, timeout time.Duration) (*pgxpool.Pool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(attemptCtx, poolConfig)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(attemptCtx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}
