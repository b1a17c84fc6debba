package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragserver/internal/model"
	"github.com/xxxsen/ragserver/internal/pkg/response"
	"github.com/xxxsen/ragserver/internal/rag"
)

type QueryHandler struct {
	pipeline *rag.Pipeline
	defaults model.QueryOptions
}

func NewQueryHandler(pipeline *rag.Pipeline, defaults model.QueryOptions) *QueryHandler {
	return &QueryHandler{pipeline: pipeline, defaults: defaults}
}

type queryRequest struct {
	Query              string   `json:"query"`
	Collection         string   `json:"collection"`
	TopK               *int     `json:"top_k"`
	HybridAlpha        *float64 `json:"hybrid_alpha"`
	MaxContextChunks   *int     `json:"max_context_chunks"`
	ContextTokenBudget *int     `json:"context_token_budget"`
	Temperature        *float64 `json:"temperature"`
}

// options starts from the configured defaults; only fields the caller sent
// override them, so an explicit zero is still an error, not a default.
func (r *queryRequest) options(defaults model.QueryOptions) model.QueryOptions {
	opts := defaults
	if r.TopK != nil {
		opts.TopK = *r.TopK
	}
	if r.HybridAlpha != nil {
		opts.HybridAlpha = *r.HybridAlpha
	}
	if r.MaxContextChunks != nil {
		opts.MaxContextChunks = *r.MaxContextChunks
	}
	if r.ContextTokenBudget != nil {
		opts.ContextTokenBudget = *r.ContextTokenBudget
	}
	if r.Temperature != nil {
		opts.Temperature = *r.Temperature
	}
	return opts
}

func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid", "invalid request body")
		return
	}
	result, err := h.pipeline.Query(c.Request.Context(), req.Query, req.Collection, req.options(h.defaults))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
