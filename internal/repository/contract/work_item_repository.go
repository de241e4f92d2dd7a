package contract

import (
	"context"

	"concept-review-be/internal/entity"
	"concept-review-be/internal/repository/specification"

	"github.com/google/uuid"
)

type WorkItemRepository interface {
	Create(ctx context.Context, item *entity.WorkItem) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.WorkItem, error)
	UpdateFields(ctx context.Context, key string, fields map[string]interface{}) error
	// SetWinnerIfUnset assigns the winner only when none is set and reports whether it did.
	SetWinnerIfUnset(ctx context.Context, key string, conceptId uuid.UUID) (bool, error)
}
