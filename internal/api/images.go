package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stablegen/gateway/internal/services/artifactstore"
	"github.com/stablegen/gateway/internal/utils/hashutil"
	"github.com/stablegen/gateway/internal/utils/imageutil"
)

// GetImage handles GET /images/:image_id. The id may carry the .png suffix.
func (h *Handler) GetImage(c *gin.Context) {
	param := c.Param("image_id")
	id := strings.TrimSuffix(param, artifactstore.Extension)

	content, err := h.images.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, artifactstore.ErrNotFound) {
			detail(c, http.StatusNotFound, "Image not found: "+param)
			return
		}
		h.writeError(c, err)
		return
	}

	etag := `"` + hashutil.Blake3Hash(content) + `"`
	c.Header("ETag", etag)
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	contentType := imageutil.ContentType(content)
	if !strings.HasPrefix(contentType, "image/") {
		contentType = imageutil.MimePNG
	}
	c.Data(http.StatusOK, contentType, content)
}
