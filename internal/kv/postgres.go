package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of *pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	pool Querier
}

func NewPostgresStore(pool Querier) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	if err := checkNamespace(namespace); err != nil {
		return "", false, err
	}

	const query = `SELECT value FROM console_kv WHERE namespace = $1 AND key = $2`

	var value string
	if err := s.pool.QueryRow(ctx, query, namespace, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("kv: select: %w", err)
	}
	return value, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, namespace, key, value string) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}

	const query = `
		INSERT INTO console_kv (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (namespace, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := s.pool.Exec(ctx, query, namespace, key, value); err != nil {
		return fmt.Errorf("kv: upsert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, namespace, key string) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}

	const query = `DELETE FROM console_kv WHERE namespace = $1 AND key = $2`
	if _, err := s.pool.Exec(ctx, query, namespace, key); err != nil {
		return fmt.Errorf("kv: delete: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, namespace string) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}

	const query = `DELETE FROM console_kv WHERE namespace = $1`
	if _, err := s.pool.Exec(ctx, query, namespace); err != nil {
		return fmt.Errorf("kv: clear: %w", err)
	}
	return nil
}

// Sweep removes every namespace whose newest entry is older than idle.
func (s *PostgresStore) Sweep(ctx context.Context, idle time.Duration) (int, error) {
	const query = `
		DELETE FROM console_kv
		WHERE namespace IN (
			SELECT namespace FROM console_kv
			GROUP BY namespace
			HAVING MAX(updated_at) < $1
		)
	`
	cmd, err := s.pool.Exec(ctx, query, time.Now().Add(-idle))
	if err != nil {
		return 0, fmt.Errorf("kv: sweep: %w", err)
	}
	return int(cmd.RowsAffected()), nil
}
