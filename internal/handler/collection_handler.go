package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragserver/internal/pkg/response"
	"github.com/xxxsen/ragserver/internal/store"
)

type CollectionHandler struct {
	store *store.Store
}

func NewCollectionHandler(st *store.Store) *CollectionHandler {
	return &CollectionHandler{store: st}
}

func (h *CollectionHandler) List(c *gin.Context) {
	infos, err := h.store.ListCollections(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	type item struct {
		Name string `json:"name"`
		Dim  int    `json:"dim"`
	}
	items := make([]item, 0, len(infos))
	for _, info := range infos {
		items = append(items, item{Name: info.Name, Dim: info.Dim})
	}
	response.Success(c, gin.H{"collections": items})
}

func (h *CollectionHandler) Stats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context(), c.Param("name"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *CollectionHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	if err := h.store.DeleteCollection(c.Request.Context(), name); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": name})
}
