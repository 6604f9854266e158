package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stablegen/gateway/internal/services/artifactstore"
	"github.com/stablegen/gateway/internal/services/generation"
)

// ErrorKindHeader carries the failure class of a 5xx response.
const ErrorKindHeader = "X-Error-Kind"

type errorResponse struct {
	Detail string `json:"detail"`
}

func detail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Detail: message})
}

// writeError maps service errors onto status codes. The message is passed
// through unmodified.
func (h *Handler) writeError(c *gin.Context, err error) {
	var failed *generation.GenerationFailedError

	switch {
	case errors.Is(err, generation.ErrInvalidParameter):
		detail(c, http.StatusBadRequest, err.Error())
		return
	case errors.As(err, &failed):
		c.Header(ErrorKindHeader, string(failed.Kind()))
	case errors.Is(err, artifactstore.ErrStorageIO):
		c.Header(ErrorKindHeader, "storage_error")
	default:
		c.Header(ErrorKindHeader, "internal_error")
	}

	h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	detail(c, http.StatusInternalServerError, err.Error())
}
