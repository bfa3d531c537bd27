package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresMedium stores the collection as one jsonb row per name. Writes are
// version stamped, so several API processes can share it: a stale writer gets
// ErrConflict instead of overwriting a newer collection.
type PostgresMedium struct {
	pool *pgxpool.Pool
	name string
}

const createCollectionsTable = `CREATE TABLE IF NOT EXISTS lead_collections (
	name       TEXT PRIMARY KEY,
	body       JSONB NOT NULL,
	version    BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func NewPostgresMedium(ctx context.Context, pool *pgxpool.Pool, name string) (*PostgresMedium, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, createCollectionsTable); err != nil {
		return nil, fmt.Errorf("create lead_collections: %w", err)
	}
	return &PostgresMedium{pool: pool, name: name}, nil
}

func (m *PostgresMedium) Load(ctx context.Context) ([]byte, int64, error) {
	const q = `SELECT body, version FROM lead_collections WHERE name=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var (
		body    []byte
		version int64
	)
	err := m.pool.QueryRow(ctx, q, m.name).Scan(&body, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return body, version, nil
}

func (m *PostgresMedium) Save(ctx context.Context, data []byte, version int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if version == 0 {
		const q = `INSERT INTO lead_collections (name, body, version)
		VALUES ($1, $2, 1)
		ON CONFLICT (name) DO NOTHING`
		tag, err := m.pool.Exec(ctx, q, m.name, data)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		return nil
	}

	const q = `UPDATE lead_collections
	SET body=$2, version=version+1, updated_at=now()
	WHERE name=$1 AND version=$3`
	tag, err := m.pool.Exec(ctx, q, m.name, data, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}
