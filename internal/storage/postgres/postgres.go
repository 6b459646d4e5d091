package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"etoken-wallet/internal/observability"
)

// Pool sizing for one wallet owner; DSN pool_* parameters take precedence.
const (
	defaultMaxConns        = 4
	defaultMaxConnIdleTime = 5 * time.Minute
	healthTimeout          = 2 * time.Second
)

// Pool is the shared connection pool behind the wallet stores.
type Pool struct {
	*pgxpool.Pool
}

// NewPool parses dsn, connects and pings.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if !strings.Contains(dsn, "pool_max_conns") {
		config.MaxConns = defaultMaxConns
	}
	if !strings.Contains(dsn, "pool_max_conn_idle_time") {
		config.MaxConnIdleTime = defaultMaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

// Healthy pings the server with a short timeout.
func (p *Pool) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return p.Ping(ctx)
}

const pgErrUniqueViolation = "23505"

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}

func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// observe records query latency and failures. Use with defer and a named error.
// A missing row is an answer, not a failure.
func observe(operation string, start time.Time, err *error) {
	var e error
	if err != nil && !isNotFoundError(*err) {
		e = *err
	}
	observability.RecordDBQuery("postgres", operation, time.Since(start).Seconds(), e)
}
