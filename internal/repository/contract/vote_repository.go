package contract

import (
	"context"

	"concept-review-be/internal/entity"
	"concept-review-be/internal/repository/specification"

	"github.com/google/uuid"
)

type VoteRepository interface {
	Upsert(ctx context.Context, vote *entity.Vote) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Vote, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Vote, error)
	Delete(ctx context.Context, userId, conceptId uuid.UUID) (int64, error)
}
