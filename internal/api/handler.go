package api

import (
	"context"

	"go.uber.org/zap"

	"github.com/stablegen/gateway/internal/db/models"
	"github.com/stablegen/gateway/internal/services/generation"
)

type Generator interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Response, error)
}

type ImageReader interface {
	Get(ctx context.Context, id string) ([]byte, error)
}

type HistoryReader interface {
	List(ctx context.Context, limit int) ([]models.Generation, error)
	GetByID(ctx context.Context, id string) (*models.Generation, error)
}

// Handler serves the public HTTP surface. history may be nil when
// generation history is disabled.
type Handler struct {
	generator Generator
	images    ImageReader
	history   HistoryReader
	logger    *zap.Logger
}

func NewHandler(generator Generator, images ImageReader, history HistoryReader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{
		generator: generator,
		images:    images,
		history:   history,
		logger:    logger,
	}
}
