package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/stablegen/gateway/internal/db/models"
	"github.com/stablegen/gateway/internal/services/generation"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type IGenerationRepository interface {
	Repository[models.Generation]
	List(ctx context.Context, limit int) ([]models.Generation, error)
	RecordGeneration(ctx context.Context, record generation.Record) error
}

type GenerationRepository struct {
	db *bun.DB
}

func NewGenerationRepository(db *bun.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

func (r *GenerationRepository) Create(ctx context.Context, gen *models.Generation) (*models.Generation, error) {
	if gen == nil {
		return nil, fmt.Errorf("generation model is nil")
	}

	if _, err := r.db.NewInsert().Model(gen).Exec(ctx); err != nil {
		return nil, err
	}

	return gen, nil
}

func (r *GenerationRepository) GetByID(ctx context.Context, id string) (*models.Generation, error) {
	var gen models.Generation
	if err := r.db.NewSelect().Model(&gen).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &gen, nil
}

// List returns the most recent generations first. limit is clamped to
// [1, MaxListLimit]; zero selects DefaultListLimit.
func (r *GenerationRepository) List(ctx context.Context, limit int) ([]models.Generation, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	generations := make([]models.Generation, 0)
	err := r.db.NewSelect().
		Model(&generations).
		Order("created_at DESC", "id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return generations, nil
}

func (r *GenerationRepository) RecordGeneration(ctx context.Context, record generation.Record) error {
	_, err := r.Create(ctx, &models.Generation{
		ID:                record.ID,
		Prompt:            record.Prompt,
		NegativePrompt:    record.NegativePrompt,
		Width:             record.Width,
		Height:            record.Height,
		NumInferenceSteps: record.NumInferenceSteps,
		GuidanceScale:     record.GuidanceScale,
		Status:            record.Status,
		ErrorKind:         record.ErrorKind,
		Error:             record.Error,
		ElapsedMs:         record.Elapsed.Milliseconds(),
		CreatedAt:         record.CreatedAt.UTC(),
	})
	return err
}
