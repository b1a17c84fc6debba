package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/ragserver/internal/model"
	"github.com/xxxsen/ragserver/internal/pkg/dbutil"
	"github.com/xxxsen/ragserver/internal/pkg/errs"
)

// Collection names become part of a table name, so the grammar is strict
// and validated before any SQL is built.
var collectionNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,47}$`)

const writeSubBatchSize = 200

type CollectionInfo struct {
	Name string
	Dim  int
}

// Store keeps chunk text and vectors in Postgres, one table per
// collection, with a tsvector column for lexical search and an HNSW index
// for vector search.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func chunkTable(collection string) string {
	return "rag_chunks_" + collection
}

func validateCollection(name string) error {
	if !collectionNameRe.MatchString(name) {
		return errs.Invalidf("collection name %q is not allowed", name)
	}
	return nil
}

// EnsureSchema registers the collection and creates its chunk table. A
// collection created with one vector dimension can never be reused with
// another.
func (s *Store) EnsureSchema(ctx context.Context, collection string, dim int) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	if dim <= 0 {
		return errs.Schemaf("vector dimension %d is not usable", dim)
	}
	var existing int
	row := s.db.QueryRowContext(ctx, `SELECT dim FROM rag_collections WHERE name = $1`, collection)
	switch err := row.Scan(&existing); {
	case err == nil:
		if existing != dim {
			return errs.Schemaf("collection %q holds %d-dim vectors, got %d-dim", collection, existing, dim)
		}
		return nil
	case err != sql.ErrNoRows:
		return fmt.Errorf("lookup collection %q: %w", collection, err)
	}
	table := chunkTable(collection)
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			source TEXT NOT NULL DEFAULT '',
			seq_id INTEGER NOT NULL,
			content TEXT NOT NULL,
			token_count INTEGER NOT NULL DEFAULT 0,
			embedding vector(%d) NOT NULL,
			content_tsv tsvector GENERATED ALWAYS AS (to_tsvector('english', content)) STORED,
			ctime BIGINT NOT NULL DEFAULT 0
		)`, table, dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_tsv ON %s USING GIN (content_tsv)`, table, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s USING hnsw (embedding vector_cosine_ops)`, table, table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create collection %q: %w", collection, err)
		}
	}
	const register = `
		INSERT INTO rag_collections (name, dim, ctime)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, register, collection, dim, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("register collection %q: %w", collection, err)
	}
	return nil
}

// WriteBatch inserts embedded chunks in sub-batches, returning how many
// rows were committed. On failure the count covers the sub-batches that
// made it in before the error.
func (s *Store) WriteBatch(ctx context.Context, collection string, chunks []model.EmbeddedChunk) (int, error) {
	if err := validateCollection(collection); err != nil {
		return 0, err
	}
	committed := 0
	now := time.Now().UnixMilli()
	for start := 0; start < len(chunks); start += writeSubBatchSize {
		end := start + writeSubBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := s.writeRows(ctx, collection, chunks[start:end], now); err != nil {
			return committed, err
		}
		committed = end
	}
	return committed, nil
}

func (s *Store) writeRows(ctx context.Context, collection string, chunks []model.EmbeddedChunk, now int64) error {
	query := fmt.Sprintf(`INSERT INTO %s (source, seq_id, content, token_count, embedding, ctime) VALUES `, chunkTable(collection))
	args := make([]interface{}, 0, len(chunks)*6)
	for i, ck := range chunks {
		if i > 0 {
			query += ", "
		}
		base := i * 6
		query += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, ck.Source, ck.SequenceID, ck.Text, ck.TokenCount, pgvector.NewVector(ck.Vector), now)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if dbutil.IsUndefinedTable(err) {
			return errs.NotFoundf("collection", collection)
		}
		return fmt.Errorf("write chunks to %q: %w", collection, err)
	}
	return nil
}

const lexicalQueryTmpl = `
	SELECT id, source, seq_id, content, token_count,
	       ts_rank_cd(content_tsv, plainto_tsquery('english', $1)) AS score
	FROM %s
	WHERE content_tsv @@ plainto_tsquery('english', $1)
	ORDER BY score DESC, seq_id ASC
	LIMIT $2
`

const vectorQueryTmpl = `
	SELECT id, source, seq_id, content, token_count,
	       1 - (embedding <=> $1) AS score
	FROM %s
	ORDER BY embedding <=> $1
	LIMIT $2
`

func (s *Store) scanCandidates(ctx context.Context, collection, query string, args ...interface{}) ([]Candidate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if dbutil.IsUndefinedTable(err) {
			return nil, errs.NotFoundf("collection", collection)
		}
		return nil, fmt.Errorf("search %q: %w", collection, err)
	}
	defer rows.Close()
	var cands []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ID, &c.Source, &c.SequenceID, &c.Text, &c.TokenCount, &c.Score); err != nil {
			return nil, err
		}
		cands = append(cands, c)
	}
	return cands, rows.Err()
}

// HybridQuery runs lexical and vector candidate searches and fuses them.
// The candidate pool is wider than topK so that a hit strong on only one
// signal still competes.
func (s *Store) HybridQuery(ctx context.Context, collection, queryText string, vector []float32, topK int, alpha float64) ([]model.RetrievedHit, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	table := chunkTable(collection)
	pool := topK * 4
	if pool < 20 {
		pool = 20
	}
	lexical, err := s.scanCandidates(ctx, collection, fmt.Sprintf(lexicalQueryTmpl, table), queryText, pool)
	if err != nil {
		return nil, err
	}
	vecCands, err := s.scanCandidates(ctx, collection, fmt.Sprintf(vectorQueryTmpl, table), pgvector.NewVector(vector), pool)
	if err != nil {
		return nil, err
	}
	return Fuse(lexical, vecCands, alpha, topK), nil
}

func (s *Store) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, dim FROM rag_collections ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var infos []CollectionInfo
	for rows.Next() {
		var info CollectionInfo
		if err := rows.Scan(&info.Name, &info.Dim); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (s *Store) Stats(ctx context.Context, collection string) (*model.CollectionStats, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	var registered int
	row := s.db.QueryRowContext(ctx, `SELECT dim FROM rag_collections WHERE name = $1`, collection)
	if err := row.Scan(&registered); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.NotFoundf("collection", collection)
		}
		return nil, err
	}
	table := chunkTable(collection)
	query := fmt.Sprintf(`SELECT COUNT(*), COALESCE(pg_total_relation_size('%s'), 0) FROM %s`, table, table)
	stats := &model.CollectionStats{}
	if err := s.db.QueryRowContext(ctx, query).Scan(&stats.ObjectCount, &stats.ApproxSizeBytes); err != nil {
		if dbutil.IsUndefinedTable(err) {
			return nil, errs.NotFoundf("collection", collection)
		}
		return nil, err
	}
	return stats, nil
}

func (s *Store) DeleteCollection(ctx context.Context, collection string) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM rag_collections WHERE name = $1`, collection)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.NotFoundf("collection", collection)
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, chunkTable(collection)))
	return err
}
