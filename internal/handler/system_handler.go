package handler

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragserver/internal/pkg/response"
)

type SystemHandler struct {
	db         *sql.DB
	embedModel string
	chatModel  string
}

func NewSystemHandler(db *sql.DB, embedModel, chatModel string) *SystemHandler {
	return &SystemHandler{db: db, embedModel: embedModel, chatModel: chatModel}
}

func (h *SystemHandler) Health(c *gin.Context) {
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		response.Error(c, http.StatusServiceUnavailable, "unhealthy", "database unreachable")
		return
	}
	response.Success(c, gin.H{
		"status":      "ok",
		"embed_model": h.embedModel,
		"chat_model":  h.chatModel,
	})
}
