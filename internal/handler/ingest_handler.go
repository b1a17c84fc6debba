package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragserver/internal/model"
	"github.com/xxxsen/ragserver/internal/pkg/response"
	"github.com/xxxsen/ragserver/internal/rag"
	"github.com/xxxsen/ragserver/internal/service"
)

type IngestHandler struct {
	pipeline *rag.Pipeline
	jobs     *service.JobService
}

func NewIngestHandler(pipeline *rag.Pipeline, jobs *service.JobService) *IngestHandler {
	return &IngestHandler{pipeline: pipeline, jobs: jobs}
}

type ingestTextRequest struct {
	Text       string            `json:"text"`
	Source     string            `json:"source"`
	Collection string            `json:"collection"`
	Metadata   map[string]string `json:"metadata"`
}

func (h *IngestHandler) IngestText(c *gin.Context) {
	var req ingestTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid", "invalid request body")
		return
	}
	start := time.Now()
	doc := model.Document{Text: req.Text, Source: req.Source, Metadata: req.Metadata}
	result, err := h.pipeline.IngestText(c.Request.Context(), doc, req.Collection, nil)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"chunks_created":   result.ChunksCreated,
		"chunks_committed": result.ChunksCommitted,
		"collection":       result.Collection,
		"source":           result.Source,
		"processing_ms":    time.Since(start).Milliseconds(),
	})
}

func (h *IngestHandler) IngestFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid", "file field is required")
		return
	}
	opened, err := fileHeader.Open()
	if err != nil {
		handleError(c, err)
		return
	}
	defer opened.Close()
	content, err := io.ReadAll(opened)
	if err != nil {
		handleError(c, err)
		return
	}
	job, err := h.jobs.CreateFileJob(c.Request.Context(), fileHeader.Filename, content, c.PostForm("collection"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": job})
}

func (h *IngestHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, job)
}

func (h *IngestHandler) ListJobs(c *gin.Context) {
	offset, _ := strconv.ParseUint(c.DefaultQuery("offset", "0"), 10, 32)
	limit, _ := strconv.ParseUint(c.DefaultQuery("limit", "50"), 10, 32)
	jobs, err := h.jobs.List(c.Request.Context(), c.Query("status"), uint(offset), uint(limit))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"jobs": jobs})
}

func (h *IngestHandler) CancelJob(c *gin.Context) {
	job, err := h.jobs.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, job)
}
