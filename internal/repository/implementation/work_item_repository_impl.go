package implementation

import (
	"context"
	"errors"
	"time"

	"concept-review-be/internal/entity"
	"concept-review-be/internal/mapper"
	"concept-review-be/internal/model"
	"concept-review-be/internal/repository/contract"
	"concept-review-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WorkItemRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.WorkItemMapper
}

func NewWorkItemRepository(db *gorm.DB) contract.WorkItemRepository {
	return &WorkItemRepositoryImpl{
		db:     db,
		mapper: mapper.NewWorkItemMapper(),
	}
}

func (r *WorkItemRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *WorkItemRepositoryImpl) Create(ctx context.Context, item *entity.WorkItem) error {
	m := r.mapper.ToModel(item)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*item = *r.mapper.ToEntity(m)
	return nil
}

func (r *WorkItemRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.WorkItem, error) {
	var m model.WorkItem
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *WorkItemRepositoryImpl) UpdateFields(ctx context.Context, key string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	return r.db.WithContext(ctx).
		Model(&model.WorkItem{}).
		Where("item_key = ?", key).
		Updates(fields).Error
}

func (r *WorkItemRepositoryImpl) SetWinnerIfUnset(ctx context.Context, key string, conceptId uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.WorkItem{}).
		Where("item_key = ? AND winning_concept_id IS NULL", key).
		Updates(map[string]interface{}{
			"winning_concept_id": conceptId,
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
