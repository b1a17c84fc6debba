package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragserver/internal/pkg/errs"
	"github.com/xxxsen/ragserver/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Warn("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, errs.ErrInvalid):
		response.Error(c, http.StatusBadRequest, "invalid", err.Error())
	case errors.Is(err, errs.ErrConfiguration):
		response.Error(c, http.StatusBadRequest, "configuration", err.Error())
	case errors.Is(err, errs.ErrNotFound):
		response.Error(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, errs.ErrExternalService):
		response.Error(c, http.StatusBadGateway, "external_service", err.Error())
	case errors.Is(err, errs.ErrSchema):
		response.Error(c, http.StatusInternalServerError, "schema", err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, "internal", "internal error")
	}
}
