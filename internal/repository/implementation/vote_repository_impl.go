package implementation

import (
	"context"
	"errors"

	"concept-review-be/internal/entity"
	"concept-review-be/internal/mapper"
	"concept-review-be/internal/model"
	"concept-review-be/internal/repository/contract"
	"concept-review-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VoteRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.VoteMapper
}

func NewVoteRepository(db *gorm.DB) contract.VoteRepository {
	return &VoteRepositoryImpl{
		db:     db,
		mapper: mapper.NewVoteMapper(),
	}
}

func (r *VoteRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *VoteRepositoryImpl) Upsert(ctx context.Context, vote *entity.Vote) error {
	m := r.mapper.ToModel(vote)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "concept_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "work_item_key", "updated_at"}),
	}).Create(m).Error
	if err != nil {
		return err
	}
	*vote = *r.mapper.ToEntity(m)
	return nil
}

func (r *VoteRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Vote, error) {
	var m model.Vote
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *VoteRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Vote, error) {
	var models []*model.Vote
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *VoteRepositoryImpl) Delete(ctx context.Context, userId, conceptId uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND concept_id = ?", userId, conceptId).
		Delete(&model.Vote{})
	return res.RowsAffected, res.Error
}
