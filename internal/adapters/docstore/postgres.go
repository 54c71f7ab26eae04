package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ramadan-bot/internal/domain"
	"ramadan-bot/internal/infra/metrics"
)

const createDocumentsTable = `CREATE TABLE IF NOT EXISTS state_documents (
	path       TEXT PRIMARY KEY,
	body       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres хранит документ в строке таблицы state_documents.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres создаёт хранилище и при необходимости таблицу.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	if _, err := pool.Exec(ctx, createDocumentsTable); err != nil {
		return nil, fmt.Errorf("create state_documents: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Load читает документ.
func (p *Postgres) Load(ctx context.Context, path string) (data []byte, err error) {
	start := time.Now()
	defer func() {
		var observed error
		if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
			observed = err
		}
		metrics.ObserveNetworkRequest("docstore", "pg_select", "postgres", start, observed)
	}()
	err = p.pool.QueryRow(ctx, `SELECT body FROM state_documents WHERE path=$1`, path).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", path, err)
	}
	return data, nil
}

// Save вставляет или заменяет документ.
func (p *Postgres) Save(ctx context.Context, path string, data []byte) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveNetworkRequest("docstore", "pg_upsert", "postgres", start, err) }()
	_, err = p.pool.Exec(ctx, `INSERT INTO state_documents (path, body, updated_at) VALUES ($1, $2, now())
ON CONFLICT (path) DO UPDATE SET body=EXCLUDED.body, updated_at=now()`, path, data)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", path, err)
	}
	return nil
}
