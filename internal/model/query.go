package model

import "github.com/xxxsen/ragserver/internal/pkg/errs"

// QueryOptions controls a single query invocation. Invalid values fail fast
// before any external call; nothing is silently clamped.
type QueryOptions struct {
	TopK               int     `json:"top_k"`
	HybridAlpha        float64 `json:"hybrid_alpha"`
	MaxContextChunks   int     `json:"max_context_chunks"`
	ContextTokenBudget int     `json:"context_token_budget"`
	Temperature        float64 `json:"temperature"`
}

func (o QueryOptions) Validate() error {
	if o.TopK < 1 {
		return errs.Configurationf("top_k must be >= 1, got %d", o.TopK)
	}
	if o.HybridAlpha < 0 || o.HybridAlpha > 1 {
		return errs.Configurationf("hybrid_alpha must be in [0,1], got %v", o.HybridAlpha)
	}
	if o.MaxContextChunks < 1 {
		return errs.Configurationf("max_context_chunks must be >= 1, got %d", o.MaxContextChunks)
	}
	if o.ContextTokenBudget < 1 {
		return errs.Configurationf("context_token_budget must be >= 1, got %d", o.ContextTokenBudget)
	}
	if o.Temperature < 0 {
		return errs.Configurationf("temperature must be >= 0, got %v", o.Temperature)
	}
	return nil
}

// AnswerResult is returned to the caller and never stored. RetrievedChunks
// holds the hits actually used in the context block, in rank order.
type AnswerResult struct {
	Answer          string         `json:"answer"`
	RetrievedChunks []RetrievedHit `json:"retrieved_chunks"`
	ModelUsed       string         `json:"model_used"`
	ChunkCount      int            `json:"chunk_count"`
}

// IngestResult reports exact chunk counts even on partial failure.
type IngestResult struct {
	ChunksCreated   int    `json:"chunks_created"`
	ChunksCommitted int    `json:"chunks_committed"`
	Collection      string `json:"collection"`
	Source          string `json:"source"`
}
