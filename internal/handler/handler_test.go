package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/xxxsen/ragserver/internal/model"
	"github.com/xxxsen/ragserver/internal/pkg/errs"
)

func testContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/query", nil)
	return c, recorder
}

func TestHandleErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{errs.Invalidf("bad input"), http.StatusBadRequest},
		{errs.Configurationf("top_k out of range"), http.StatusBadRequest},
		{errs.NotFoundf("collection", "ghost"), http.StatusNotFound},
		{errs.ExternalServicef("openai", "rate limited"), http.StatusBadGateway},
		{errs.Schemaf("dim mismatch"), http.StatusInternalServerError},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		c, recorder := testContext(t)
		handleError(c, tc.err)
		assert.Equal(t, tc.status, recorder.Code, "error %v", tc.err)
	}
}

func TestQueryRequestOptionOverrides(t *testing.T) {
	defaults := model.QueryOptions{
		TopK:               5,
		HybridAlpha:        0.5,
		MaxContextChunks:   6,
		ContextTokenBudget: 3000,
		Temperature:        0.2,
	}
	topK := 10
	alpha := 0.0
	req := queryRequest{TopK: &topK, HybridAlpha: &alpha}
	opts := req.options(defaults)
	assert.Equal(t, 10, opts.TopK)
	assert.Equal(t, 0.0, opts.HybridAlpha)
	assert.Equal(t, 6, opts.MaxContextChunks)
	assert.Equal(t, 3000, opts.ContextTokenBudget)
	assert.Equal(t, 0.2, opts.Temperature)
}

func TestQueryRequestKeepsDefaults(t *testing.T) {
	defaults := model.QueryOptions{TopK: 5, HybridAlpha: 0.5, MaxContextChunks: 6, ContextTokenBudget: 3000, Temperature: 0.2}
	var req queryRequest
	assert.Equal(t, defaults, req.options(defaults))
}
