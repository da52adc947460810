package storage

import (
	"context"

	"featsel/internal/model"
)

// Store persists finished run summaries and their per-generation metrics.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveGenerationRecords(ctx context.Context, runID string, records []model.GenerationRecord) error
	GetGenerationRecords(ctx context.Context, runID string) ([]model.GenerationRecord, bool, error)
	Reset(ctx context.Context) error
}
