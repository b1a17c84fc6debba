package ai

import (
	"context"
	"time"

	"github.com/xxxsen/ragserver/internal/embedcache"
	"github.com/xxxsen/ragserver/internal/model"
	"github.com/xxxsen/ragserver/internal/pkg/errs"
	"github.com/xxxsen/ragserver/internal/pkg/retry"
)

type BatcherConfig struct {
	Model           string
	BatchSize       int
	MaxRetries      int
	BaseDelay       time.Duration
	InterBatchDelay time.Duration
	CallTimeout     time.Duration
}

func (c *BatcherConfig) fillDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.InterBatchDelay < 0 {
		c.InterBatchDelay = 0
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 60 * time.Second
	}
}

// Batcher turns chunks into embedded chunks in provider-sized batches,
// retrying transient provider failures and serving repeated texts from an
// optional in-memory cache.
type Batcher struct {
	provider IEmbedProvider
	cache    *embedcache.Cache
	cfg      BatcherConfig
	policy   retry.Policy
}

func NewBatcher(provider IEmbedProvider, cache *embedcache.Cache, cfg BatcherConfig) *Batcher {
	cfg.fillDefaults()
	policy := retry.Default()
	policy.MaxAttempts = cfg.MaxRetries
	policy.BaseDelay = cfg.BaseDelay
	return &Batcher{
		provider: provider,
		cache:    cache,
		cfg:      cfg,
		policy:   policy,
	}
}

func (b *Batcher) Model() string {
	return b.cfg.Model
}

func (b *Batcher) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := b.policy.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
		defer cancel()
		out, err := b.provider.EmbedBatch(callCtx, b.cfg.Model, texts)
		if err != nil {
			return err
		}
		vectors = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedChunks embeds one batch of chunks, pairing vectors to chunks by
// position. A count or dimension mismatch from the provider rejects the
// whole batch, no chunk is accepted on faith.
func (b *Batcher) EmbedChunks(ctx context.Context, chunks []model.Chunk) ([]model.EmbeddedChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	embedded := make([]model.EmbeddedChunk, len(chunks))
	missIdx := make([]int, 0, len(chunks))
	missTexts := make([]string, 0, len(chunks))
	for i, ck := range chunks {
		embedded[i].Chunk = ck
		if vec, ok := b.cache.Get(b.cfg.Model, ck.Text); ok {
			embedded[i].Vector = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, ck.Text)
	}
	if len(missTexts) > 0 {
		vectors, err := b.embedTexts(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(missTexts) {
			return nil, errs.ExternalServicef(b.provider.Name(),
				"returned %d vectors for %d inputs", len(vectors), len(missTexts))
		}
		for j, vec := range vectors {
			if len(vec) == 0 {
				return nil, errs.ExternalServicef(b.provider.Name(),
					"returned empty vector at position %d", j)
			}
			embedded[missIdx[j]].Vector = vec
			b.cache.Put(b.cfg.Model, missTexts[j], vec)
		}
	}
	dim := len(embedded[0].Vector)
	for i := range embedded {
		if len(embedded[i].Vector) != dim {
			return nil, errs.ExternalServicef(b.provider.Name(),
				"inconsistent vector dimensions: %d vs %d", len(embedded[i].Vector), dim)
		}
	}
	return embedded, nil
}

// EmbedAll embeds every chunk, batch by batch, pausing between batches to
// stay under provider rate limits. onBatch, when set, receives each
// embedded batch together with the cumulative count; a non-nil return
// stops the loop and propagates unchanged.
func (b *Batcher) EmbedAll(ctx context.Context, chunks []model.Chunk, onBatch func(batch []model.EmbeddedChunk, done int) error) error {
	done := 0
	for start := 0; start < len(chunks); start += b.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		if start > 0 && b.cfg.InterBatchDelay > 0 {
			select {
			case <-time.After(b.cfg.InterBatchDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		end := start + b.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		embedded, err := b.EmbedChunks(ctx, chunks[start:end])
		if err != nil {
			return err
		}
		done += len(embedded)
		if onBatch != nil {
			if err := onBatch(embedded, done); err != nil {
				return err
			}
		}
	}
	return nil
}

// EmbedQuery embeds a single piece of query text with the same model and
// retry behaviour used at ingest time.
func (b *Batcher) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := b.cache.Get(b.cfg.Model, text); ok {
		return vec, nil
	}
	vectors, err := b.embedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, errs.ExternalServicef(b.provider.Name(), "returned no vector for query text")
	}
	b.cache.Put(b.cfg.Model, text, vectors[0])
	return vectors[0], nil
}
