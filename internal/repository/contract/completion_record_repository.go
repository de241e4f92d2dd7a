package contract

import (
	"context"

	"concept-review-be/internal/entity"
	"concept-review-be/internal/repository/specification"
)

type CompletionRecordRepository interface {
	// Upsert is idempotent; created is false when the record already existed.
	Upsert(ctx context.Context, record *entity.CompletionRecord) (created bool, err error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.CompletionRecord, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
