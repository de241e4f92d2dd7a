package contract

import (
	"context"

	"concept-review-be/internal/entity"
	"concept-review-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ConceptRepository interface {
	Create(ctx context.Context, concept *entity.Concept) error
	CreateBulk(ctx context.Context, concepts []*entity.Concept) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Concept, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Concept, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	// AdjustCounter adds delta to the aggregate for kind, clamping the result at zero.
	AdjustCounter(ctx context.Context, id uuid.UUID, kind entity.VoteKind, delta int) error
	DeactivateByWorkItem(ctx context.Context, key string) error
}
