package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/premsagar/subscription-service/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	bucket TEXT NOT NULL,
	key    TEXT NOT NULL,
	attrs  JSONB NOT NULL,
	PRIMARY KEY (bucket, key)
);
CREATE INDEX IF NOT EXISTS records_attrs_idx ON records USING gin (attrs);
`

// PostgresStore реализация RecordStore поверх PostgreSQL. Записи лежат в
// одной таблице с JSONB-документом атрибутов; условие обновления уходит в
// WHERE, так что проверка и запись выполняются одним оператором.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPostgresStore создает хранилище, подключается и разворачивает схему
func NewPostgresStore(ctx context.Context, dsn string, log *logger.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Infow("Postgres record store initialized")
	return &PostgresStore{pool: pool, log: log}, nil
}

// Close закрывает пул соединений
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Get возвращает запись по ключу. PostgreSQL читает последнюю
// зафиксированную версию строки, поэтому mode здесь не различается.
func (s *PostgresStore) Get(ctx context.Context, bucket, key string, mode ReadMode) (Record, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT attrs FROM records WHERE bucket = $1 AND key = $2`,
		bucket, key,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get record %s/%s: %w", bucket, key, err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, fmt.Errorf("failed to decode record %s/%s: %w", bucket, key, err)
	}
	return rec, true, nil
}

// PutIfAbsent вставляет запись, если ключ свободен
func (s *PostgresStore) PutIfAbsent(ctx context.Context, bucket, key string, rec Record) (bool, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("failed to encode record: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO records (bucket, key, attrs) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (bucket, key) DO NOTHING`,
		bucket, key, raw,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert record %s/%s: %w", bucket, key, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Update применяет условное обновление одним UPDATE: условие сравнивается
// через jsonb-containment, обновленные поля вливаются оператором ||
func (s *PostgresStore) Update(ctx context.Context, bucket, key string, cond Cond, updates Updates) (bool, error) {
	condRaw, err := json.Marshal(map[string]any(cond))
	if err != nil {
		return false, fmt.Errorf("failed to encode condition: %w", err)
	}
	updRaw, err := json.Marshal(map[string]any(updates))
	if err != nil {
		return false, fmt.Errorf("failed to encode updates: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE records SET attrs = attrs || $3::jsonb
		 WHERE bucket = $1 AND key = $2 AND attrs @> $4::jsonb`,
		bucket, key, updRaw, condRaw,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update record %s/%s: %w", bucket, key, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Query возвращает записи с совпадающим значением индексного поля
func (s *PostgresStore) Query(ctx context.Context, bucket, index string, value any, desc bool, limit int) ([]Record, error) {
	filter, err := json.Marshal(map[string]any{index: value})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query filter: %w", err)
	}

	order := "ASC"
	if desc {
		order = "DESC"
	}
	query := fmt.Sprintf(
		`SELECT attrs FROM records WHERE bucket = $1 AND attrs @> $2::jsonb
		 ORDER BY attrs->>'created_at' %s`, order)
	args := []any{bucket, filter}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records in %s: %w", bucket, err)
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return result, nil
}
