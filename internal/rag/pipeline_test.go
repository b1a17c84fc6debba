package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/ragserver/internal/chunker"
	"github.com/xxxsen/ragserver/internal/model"
	"github.com/xxxsen/ragserver/internal/pkg/errs"
)

type wordTokenizer struct{}

func (wordTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}

func (wordTokenizer) Split(text string, maxTokens int) []string {
	words := strings.Fields(text)
	var parts []string
	for start := 0; start < len(words); start += maxTokens {
		end := start + maxTokens
		if end > len(words) {
			end = len(words)
		}
		parts = append(parts, strings.Join(words[start:end], " "))
	}
	return parts
}

type fakeEmbedder struct {
	batchSize  int
	batchCalls int
	queryCalls int
	failAfter  int
}

func (f *fakeEmbedder) EmbedAll(ctx context.Context, chunks []model.Chunk, onBatch func(batch []model.EmbeddedChunk, done int) error) error {
	done := 0
	for start := 0; start < len(chunks); start += f.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		f.batchCalls++
		if f.failAfter > 0 && f.batchCalls > f.failAfter {
			return errs.ExternalServicef("fake", "embedding down")
		}
		end := start + f.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := make([]model.EmbeddedChunk, end-start)
		for i, ck := range chunks[start:end] {
			batch[i] = model.EmbeddedChunk{Chunk: ck, Vector: []float32{1, 2, 3}}
		}
		done += len(batch)
		if onBatch != nil {
			if err := onBatch(batch, done); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.queryCalls++
	return []float32{1, 2, 3}, nil
}

type fakeStore struct {
	schemaCalls int
	schemaDim   int
	written     []model.EmbeddedChunk
	writeCalls  int
	hits        []model.RetrievedHit
	queryCalls  int
}

func (f *fakeStore) EnsureSchema(ctx context.Context, collection string, dim int) error {
	f.schemaCalls++
	f.schemaDim = dim
	return nil
}

func (f *fakeStore) WriteBatch(ctx context.Context, collection string, chunks []model.EmbeddedChunk) (int, error) {
	f.writeCalls++
	f.written = append(f.written, chunks...)
	return len(chunks), nil
}

func (f *fakeStore) HybridQuery(ctx context.Context, collection, queryText string, vector []float32, topK int, alpha float64) ([]model.RetrievedHit, error) {
	f.queryCalls++
	return f.hits, nil
}

type fakeCompleter struct {
	calls   int
	prompts []string
	answer  string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.answer, nil
}

func (f *fakeCompleter) Model() string { return "test-chat" }

func newTestPipeline(embedder *fakeEmbedder, store *fakeStore, completer *fakeCompleter) *Pipeline {
	ck := chunker.New(wordTokenizer{})
	return NewPipeline(ck, embedder, store, completer, Config{
		ChunkTokens:   6,
		OverlapTokens: 2,
	})
}

func defaultOptions() model.QueryOptions {
	return model.QueryOptions{
		TopK:               5,
		HybridAlpha:        0.5,
		MaxContextChunks:   6,
		ContextTokenBudget: 3000,
		Temperature:        0.2,
	}
}

func TestIngestTextRejectsEmptyDocument(t *testing.T) {
	p := newTestPipeline(&fakeEmbedder{batchSize: 2}, &fakeStore{}, &fakeCompleter{})
	_, err := p.IngestText(context.Background(), model.Document{Text: "   \n "}, "", nil)
	require.ErrorIs(t, err, errs.ErrInvalid)
}

func TestIngestTextBatchesAndCommits(t *testing.T) {
	embedder := &fakeEmbedder{batchSize: 2}
	store := &fakeStore{}
	p := newTestPipeline(embedder, store, &fakeCompleter{})
	text := "One two three four five. Six seven eight nine ten. " +
		"Alpha beta gamma delta epsilon. Zeta eta theta iota kappa. " +
		"Lambda mu nu xi omicron."
	var progress [][2]int
	res, err := p.IngestText(context.Background(), model.Document{Text: text, Source: "a.txt"},
		"docs", func(created, committed int) {
			progress = append(progress, [2]int{created, committed})
		})
	require.NoError(t, err)
	assert.Equal(t, res.ChunksCreated, res.ChunksCommitted)
	assert.Equal(t, "docs", res.Collection)
	assert.Equal(t, 1, store.schemaCalls)
	assert.Equal(t, 3, store.schemaDim)
	assert.Equal(t, len(store.written), res.ChunksCommitted)
	for _, ck := range store.written {
		assert.Equal(t, "a.txt", ck.Source)
	}
	require.NotEmpty(t, progress)
	last := progress[len(progress)-1]
	assert.Equal(t, res.ChunksCommitted, last[1])
	// writes interleave with embedding instead of waiting for all vectors
	assert.Equal(t, embedder.batchCalls, store.writeCalls)
}

func TestIngestTextKeepsCommittedOnFailure(t *testing.T) {
	embedder := &fakeEmbedder{batchSize: 1, failAfter: 1}
	store := &fakeStore{}
	p := newTestPipeline(embedder, store, &fakeCompleter{})
	text := "One two three four five. Six seven eight nine ten. Alpha beta gamma delta epsilon."
	res, err := p.IngestText(context.Background(), model.Document{Text: text, Source: "a.txt"}, "docs", nil)
	require.ErrorIs(t, err, errs.ErrExternalService)
	require.NotNil(t, res)
	assert.Greater(t, res.ChunksCreated, res.ChunksCommitted)
	assert.Equal(t, len(store.written), res.ChunksCommitted)
}

func TestIngestTextStopsOnCancel(t *testing.T) {
	embedder := &fakeEmbedder{batchSize: 1}
	store := &fakeStore{}
	p := newTestPipeline(embedder, store, &fakeCompleter{})
	ctx, cancel := context.WithCancel(context.Background())
	text := "One two three four five. Six seven eight nine ten. Alpha beta gamma delta epsilon."
	res, err := p.IngestText(ctx, model.Document{Text: text, Source: "a.txt"}, "docs",
		func(created, committed int) { cancel() })
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.ChunksCommitted)
	assert.Equal(t, 1, embedder.batchCalls)
}

func TestQueryValidatesBeforeExternalCalls(t *testing.T) {
	embedder := &fakeEmbedder{batchSize: 2}
	store := &fakeStore{}
	completer := &fakeCompleter{}
	p := newTestPipeline(embedder, store, completer)
	opts := defaultOptions()
	opts.HybridAlpha = 1.5
	_, err := p.Query(context.Background(), "what are cats", "docs", opts)
	require.ErrorIs(t, err, errs.ErrConfiguration)
	assert.Zero(t, embedder.queryCalls)
	assert.Zero(t, store.queryCalls)
	assert.Zero(t, completer.calls)
}

func TestQueryNoHits(t *testing.T) {
	completer := &fakeCompleter{answer: "unused"}
	p := newTestPipeline(&fakeEmbedder{batchSize: 2}, &fakeStore{}, completer)
	res, err := p.Query(context.Background(), "what are cats", "docs", defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, noResultsAnswer, res.Answer)
	assert.Empty(t, res.RetrievedChunks)
	assert.Zero(t, completer.calls)
}

func TestQueryHappyPath(t *testing.T) {
	store := &fakeStore{hits: []model.RetrievedHit{
		{Text: "cats are mammals", Source: "a.txt", SequenceID: 0, TokenCount: 3, Score: 0.9, Rank: 1},
		{Text: "dogs are mammals", Source: "a.txt", SequenceID: 1, TokenCount: 3, Score: 0.4, Rank: 2},
	}}
	completer := &fakeCompleter{answer: "Cats are mammals."}
	p := newTestPipeline(&fakeEmbedder{batchSize: 2}, store, completer)
	res, err := p.Query(context.Background(), "what are cats", "docs", defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "Cats are mammals.", res.Answer)
	assert.Equal(t, "test-chat", res.ModelUsed)
	assert.Equal(t, 2, res.ChunkCount)
	require.Len(t, completer.prompts, 1)
	assert.Contains(t, completer.prompts[0], "cats are mammals")
	assert.Contains(t, completer.prompts[0], "Question: what are cats")
}
