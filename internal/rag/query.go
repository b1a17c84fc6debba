package rag

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragserver/internal/model"
	"github.com/xxxsen/ragserver/internal/pkg/errs"
)

const noResultsAnswer = "No relevant documents found for your query."

// Query answers a question from one collection. Options are validated
// before anything leaves the process, so a bad temperature never costs an
// embedding call.
func (p *Pipeline) Query(ctx context.Context, queryText, collection string, opts model.QueryOptions) (*model.AnswerResult, error) {
	if collection == "" {
		collection = p.cfg.DefaultCollection
	}
	if strings.TrimSpace(queryText) == "" {
		return nil, errs.Invalidf("query text is empty")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("collection", collection))

	vector, err := p.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		logger.Error("query embedding failed", zap.Error(err))
		return nil, err
	}
	hits, err := p.store.HybridQuery(ctx, collection, queryText, vector, opts.TopK, opts.HybridAlpha)
	if err != nil {
		logger.Error("hybrid search failed", zap.Error(err))
		return nil, err
	}
	if len(hits) == 0 {
		logger.Info("no hits for query")
		return &model.AnswerResult{
			Answer:          noResultsAnswer,
			RetrievedChunks: []model.RetrievedHit{},
			ModelUsed:       p.completer.Model(),
		}, nil
	}

	contextBlock, used := Assemble(hits, opts.MaxContextChunks, opts.ContextTokenBudget)
	prompt := BuildPrompt(queryText, contextBlock)
	answer, err := p.completer.Complete(ctx, prompt, opts.Temperature)
	if err != nil {
		logger.Error("answer generation failed", zap.Error(err))
		return nil, err
	}
	logger.Info("query answered", zap.Int("hits", len(hits)), zap.Int("context_chunks", len(used)))
	if used == nil {
		used = []model.RetrievedHit{}
	}
	return &model.AnswerResult{
		Answer:          answer,
		RetrievedChunks: used,
		ModelUsed:       p.completer.Model(),
		ChunkCount:      len(used),
	}, nil
}
