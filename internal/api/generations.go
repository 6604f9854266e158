package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stablegen/gateway/internal/db/models"
	"github.com/stablegen/gateway/internal/db/repository"
	"github.com/stablegen/gateway/internal/services/generation"
)

type generationView struct {
	models.Generation
	ImageURL string `json:"image_url,omitempty"`
}

func newGenerationView(gen models.Generation) generationView {
	view := generationView{Generation: gen}
	if gen.Status == generation.StatusSuccess {
		view.ImageURL = generation.ImageURL(gen.ID)
	}
	return view
}

// ListGenerations handles GET /api/generations?limit=N.
func (h *Handler) ListGenerations(c *gin.Context) {
	if h.history == nil {
		detail(c, http.StatusNotFound, "generation history is disabled")
		return
	}

	limit := repository.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > repository.MaxListLimit {
			detail(c, http.StatusBadRequest, "limit must be an integer between 1 and "+strconv.Itoa(repository.MaxListLimit))
			return
		}
		limit = n
	}

	generations, err := h.history.List(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	views := make([]generationView, 0, len(generations))
	for _, gen := range generations {
		views = append(views, newGenerationView(gen))
	}

	c.JSON(http.StatusOK, gin.H{"generations": views})
}

// GetGeneration handles GET /api/generations/:id.
func (h *Handler) GetGeneration(c *gin.Context) {
	if h.history == nil {
		detail(c, http.StatusNotFound, "generation history is disabled")
		return
	}

	id := c.Param("id")
	gen, err := h.history.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			detail(c, http.StatusNotFound, "Generation not found: "+id)
			return
		}
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newGenerationView(*gen))
}
