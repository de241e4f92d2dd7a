package implementation

import (
	"context"
	"errors"

	"concept-review-be/internal/entity"
	"concept-review-be/internal/mapper"
	"concept-review-be/internal/model"
	"concept-review-be/internal/repository/contract"
	"concept-review-be/internal/repository/specification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CompletionRecordRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CompletionRecordMapper
}

func NewCompletionRecordRepository(db *gorm.DB) contract.CompletionRecordRepository {
	return &CompletionRecordRepositoryImpl{
		db:     db,
		mapper: mapper.NewCompletionRecordMapper(),
	}
}

func (r *CompletionRecordRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *CompletionRecordRepositoryImpl) Upsert(ctx context.Context, record *entity.CompletionRecord) (bool, error) {
	m := r.mapper.ToModel(record)
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "work_item_key"}},
		DoNothing: true,
	}).Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *CompletionRecordRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.CompletionRecord, error) {
	var m model.CompletionRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *CompletionRecordRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.CompletionRecord{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
