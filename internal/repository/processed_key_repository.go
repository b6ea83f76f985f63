package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/streamgate/internal/db"
	"github.com/rpattn/streamgate/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const insertChunkSize = 1000

type processedKeyRepository struct {
	pool *pgxpool.Pool
}

// NewProcessedKeyRepository wires a repository backed by pgxpool.
func NewProcessedKeyRepository(pool *pgxpool.Pool) ProcessedKeyRepository {
	return &processedKeyRepository{pool: pool}
}

func (r *processedKeyRepository) List(ctx context.Context) ([]string, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("processed key repository not initialized")
	}

	rows, err := r.pool.Query(ctx, `SELECT key FROM processed_keys ORDER BY created_at, key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list processed keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if scanErr := rows.Scan(&key); scanErr != nil {
			return nil, fmt.Errorf("failed to scan processed key: %w", scanErr)
		}
		keys = append(keys, key)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate processed keys: %w", rowsErr)
	}

	return keys, nil
}

func (r *processedKeyRepository) Add(ctx context.Context, keys []string) error {
	if r.pool == nil {
		return fmt.Errorf("processed key repository not initialized")
	}
	if len(keys) == 0 {
		return nil
	}

	tables := make([]string, len(keys))
	rowIDs := make([]string, len(keys))
	for i, key := range keys {
		table, rowID, ok := domain.SplitCompositeKey(key)
		if !ok {
			return fmt.Errorf("invalid processed key %q", key)
		}
		tables[i] = table
		rowIDs[i] = rowID
	}

	// Chunks commit together so a failed batch leaves no partial history
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for start := 0; start < len(keys); start += insertChunkSize {
			end := min(start+insertChunkSize, len(keys))
			if _, err := tx.Exec(
				ctx,
				`INSERT INTO processed_keys (key, table_name, row_id)
				 SELECT * FROM unnest($1::text[], $2::text[], $3::text[])
				 ON CONFLICT (key) DO NOTHING`,
				keys[start:end],
				tables[start:end],
				rowIDs[start:end],
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record processed keys: %w", err)
	}

	return nil
}

func (r *processedKeyRepository) Clear(ctx context.Context) error {
	if r.pool == nil {
		return fmt.Errorf("processed key repository not initialized")
	}

	if _, err := r.pool.Exec(ctx, `DELETE FROM processed_keys`); err != nil {
		return fmt.Errorf("failed to clear processed keys: %w", err)
	}
	return nil
}
