package rag

import (
	"context"

	"github.com/xxxsen/ragserver/internal/chunker"
	"github.com/xxxsen/ragserver/internal/model"
)

// Datastore is the persistence collaborator: one logical collection per
// name, hybrid lexical+vector retrieval over it.
type Datastore interface {
	EnsureSchema(ctx context.Context, collection string, dim int) error
	WriteBatch(ctx context.Context, collection string, chunks []model.EmbeddedChunk) (int, error)
	HybridQuery(ctx context.Context, collection, queryText string, vector []float32, topK int, alpha float64) ([]model.RetrievedHit, error)
}

// Embedder produces vectors for chunks and query text. Implementations own
// batching, pacing between batches, caching and retry; onBatch receives
// each embedded batch and may abort the run by returning an error.
type Embedder interface {
	EmbedAll(ctx context.Context, chunks []model.Chunk, onBatch func(batch []model.EmbeddedChunk, done int) error) error
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Completer turns a finished prompt into answer text.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
	Model() string
}

type Config struct {
	ChunkTokens       int
	OverlapTokens     int
	DefaultCollection string
	MaxInputBytes     int
}

func (c *Config) fillDefaults() {
	if c.ChunkTokens <= 0 {
		c.ChunkTokens = 400
	}
	if c.OverlapTokens < 0 {
		c.OverlapTokens = 60
	}
	if c.DefaultCollection == "" {
		c.DefaultCollection = "documents"
	}
	if c.MaxInputBytes <= 0 {
		c.MaxInputBytes = 1 << 20
	}
}

// Pipeline wires chunking, embedding, storage and generation into the two
// entry points the handlers and CLI call: IngestText and Query.
type Pipeline struct {
	chunker   *chunker.Chunker
	embedder  Embedder
	store     Datastore
	completer Completer
	cfg       Config
}

func NewPipeline(ck *chunker.Chunker, embedder Embedder, store Datastore, completer Completer, cfg Config) *Pipeline {
	cfg.fillDefaults()
	return &Pipeline{
		chunker:   ck,
		embedder:  embedder,
		store:     store,
		completer: completer,
		cfg:       cfg,
	}
}

func (p *Pipeline) DefaultCollection() string {
	return p.cfg.DefaultCollection
}
