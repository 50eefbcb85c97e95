package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/artmap/internal/corpus"
)

// ArtworkRepository stores the current snapshot: one row per record with its
// embedding, plus the manifest of every run that was pushed.
type ArtworkRepository struct {
	pool *Pool
}

func NewArtworkRepository(pool *Pool) *ArtworkRepository {
	return &ArtworkRepository{pool: pool}
}

// SaveSnapshot replaces the mirrored snapshot with c in one transaction. Rows
// for paths no longer in the corpus are removed.
func (r *ArtworkRepository) SaveSnapshot(ctx context.Context, c *corpus.Corpus) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("refusing to push invalid corpus: %w", err)
	}
	if c.Manifest == nil {
		return errors.New("corpus has no manifest")
	}
	manifest, err := json.Marshal(c.Manifest)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO index_runs (run_id, created_at, backbone, dim, manifest)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id) DO UPDATE SET manifest = EXCLUDED.manifest
	`, c.Manifest.RunID, c.Manifest.CreatedAt, c.Manifest.Backbone, c.Manifest.Dim, manifest)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO artworks (image_path, position, author, class_id, cluster_id, x, y, embedding, run_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (image_path) DO UPDATE SET
			position = EXCLUDED.position,
			author = EXCLUDED.author,
			class_id = EXCLUDED.class_id,
			cluster_id = EXCLUDED.cluster_id,
			x = EXCLUDED.x,
			y = EXCLUDED.y,
			embedding = EXCLUDED.embedding,
			run_id = EXCLUDED.run_id,
			updated_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	paths := make([]string, len(c.Records))
	for i, rec := range c.Records {
		vec, _ := c.Vectors.Get(rec.Path)
		_, err := stmt.ExecContext(ctx,
			rec.Path, i, rec.Author, rec.ClassID, rec.ClusterID, rec.X, rec.Y,
			pgvector.NewVector(vec), c.Manifest.RunID,
		)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", rec.Path, err)
		}
		paths[i] = rec.Path
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM artworks WHERE NOT (image_path = ANY($1))", pq.Array(paths)); err != nil {
		return fmt.Errorf("delete stale artworks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadRecords returns the mirrored records in snapshot order, without
// embeddings.
func (r *ArtworkRepository) LoadRecords(ctx context.Context) ([]corpus.ImageRecord, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT image_path, author, class_id, cluster_id, x, y
		FROM artworks
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("query artworks: %w", err)
	}
	defer rows.Close()

	var records []corpus.ImageRecord
	for rows.Next() {
		var rec corpus.ImageRecord
		if err := rows.Scan(&rec.Path, &rec.Author, &rec.ClassID, &rec.ClusterID, &rec.X, &rec.Y); err != nil {
			return nil, fmt.Errorf("scan artwork: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artworks: %w", err)
	}
	return records, nil
}

// LoadVectors returns the mirrored embeddings in snapshot order.
func (r *ArtworkRepository) LoadVectors(ctx context.Context) (*corpus.VectorStore, error) {
	rows, err := r.pool.db.QueryContext(ctx, "SELECT image_path, embedding FROM artworks ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	store := corpus.NewVectorStore()
	for rows.Next() {
		var path string
		var vec pgvector.Vector
		if err := rows.Scan(&path, &vec); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		store.Add(path, vec.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return store, nil
}

// LatestManifest returns the manifest of the most recent run, or nil if none
// was pushed.
func (r *ArtworkRepository) LatestManifest(ctx context.Context) (*corpus.Manifest, error) {
	var raw []byte
	err := r.pool.db.QueryRowContext(ctx, "SELECT manifest FROM index_runs ORDER BY created_at DESC LIMIT 1").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}

	var m corpus.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// Count returns the number of mirrored artworks.
func (r *ArtworkRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM artworks").Scan(&count); err != nil {
		return 0, fmt.Errorf("count artworks: %w", err)
	}
	return count, nil
}

// Ping checks the database connection.
func (r *ArtworkRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
