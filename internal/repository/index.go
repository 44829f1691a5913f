package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/newsrag/internal/domain"
	"github.com/cloo-solutions/newsrag/internal/index"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// IndexRepository persists whole indexes in postgres, one row per index in
// indexes and one row per entry in index_entries. The location of an index
// is its name.
type IndexRepository struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

func NewIndexRepository(pool *pgxpool.Pool) *IndexRepository {
	return &IndexRepository{pool: pool, tx: NewTxRunner(pool)}
}

// Exists reports whether a complete index is stored under name.
func (r *IndexRepository) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM indexes WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Persist replaces the index stored under name in a single transaction, so
// readers see either the previous index or the new one.
func (r *IndexRepository) Persist(ctx context.Context, store *index.Store, name string) error {
	return r.tx.WithTx(ctx, func(tx pgx.Tx) error {
		return writeIndex(ctx, tx, store, name)
	})
}

func writeIndex(ctx context.Context, tx pgx.Tx, store *index.Store, name string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM indexes WHERE name = $1`, name); err != nil {
		return fmt.Errorf("failed to delete previous index: %w", err)
	}

	_, err := tx.Exec(ctx,
		`INSERT INTO indexes (name, version, dimensions, provider, entry_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		name,
		index.FormatVersion,
		store.Dimensions(),
		store.Provider(),
		store.Len(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert index: %w", err)
	}

	batch := &pgx.Batch{}
	for position, entry := range store.Entries() {
		metadata, err := encodeMetadata(entry.Chunk.Metadata)
		if err != nil {
			return err
		}
		batch.Queue(
			`INSERT INTO index_entries
				(index_name, position, id, source, chunk_index, chunk_offset, content, metadata, embedding)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)`,
			name,
			position,
			entry.ID,
			entry.Chunk.Source,
			entry.Chunk.Index,
			entry.Chunk.Offset,
			entry.Chunk.Text,
			metadata,
			pgvector.NewVector(entry.Vector),
		)
	}
	if batch.Len() == 0 {
		return nil
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert index entries: %w", err)
	}
	return nil
}

// Load reads the index stored under name.
func (r *IndexRepository) Load(ctx context.Context, name string) (*index.Store, error) {
	manifest, err := loadManifest(ctx, r.pool, name)
	if err != nil {
		return nil, err
	}

	entries, err := loadEntries(ctx, r.pool, name)
	if err != nil {
		return nil, err
	}

	return index.FromEntries(*manifest, entries)
}

func loadManifest(ctx context.Context, db dbtx, name string) (*domain.IndexManifest, error) {
	var m domain.IndexManifest
	err := db.QueryRow(ctx,
		`SELECT version, dimensions, provider, entry_count, created_at FROM indexes WHERE name = $1`,
		name,
	).Scan(&m.Version, &m.Dimensions, &m.Provider, &m.EntryCount, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIndexNotFound.WithCause(fmt.Errorf("no index named %q", name))
		}
		return nil, err
	}
	return &m, nil
}

func loadEntries(ctx context.Context, db dbtx, name string) ([]domain.IndexEntry, error) {
	rows, err := db.Query(ctx,
		`SELECT id::text, source, chunk_index, chunk_offset, content, metadata, embedding
		 FROM index_entries
		 WHERE index_name = $1
		 ORDER BY position`,
		name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.IndexEntry
	for rows.Next() {
		var e domain.IndexEntry
		var metadata []byte
		var embedding pgvector.Vector
		if err := rows.Scan(
			&e.ID,
			&e.Chunk.Source,
			&e.Chunk.Index,
			&e.Chunk.Offset,
			&e.Chunk.Text,
			&metadata,
			&embedding,
		); err != nil {
			return nil, domain.ErrCorruptIndex.WithCause(err)
		}
		if e.Chunk.Metadata, err = decodeMetadata(metadata); err != nil {
			return nil, err
		}
		e.Vector = embedding.Slice()
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func encodeMetadata(metadata map[string]string) ([]byte, error) {
	if len(metadata) == 0 {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chunk metadata: %w", err)
	}
	return data, nil
}

func decodeMetadata(data []byte) (map[string]string, error) {
	var metadata map[string]string
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, domain.ErrCorruptIndex.WithCause(fmt.Errorf("failed to decode chunk metadata: %w", err))
	}
	if len(metadata) == 0 {
		return nil, nil
	}
	return metadata, nil
}
