package implementation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"concept-review-be/internal/entity"
	"concept-review-be/internal/mapper"
	"concept-review-be/internal/model"
	"concept-review-be/internal/repository/contract"
	"concept-review-be/internal/repository/scope"
	"concept-review-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConceptRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ConceptMapper
}

func NewConceptRepository(db *gorm.DB) contract.ConceptRepository {
	return &ConceptRepositoryImpl{
		db:     db,
		mapper: mapper.NewConceptMapper(),
	}
}

func (r *ConceptRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ConceptRepositoryImpl) Create(ctx context.Context, concept *entity.Concept) error {
	m := r.mapper.ToModel(concept)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*concept = *r.mapper.ToEntity(m)
	return nil
}

func (r *ConceptRepositoryImpl) CreateBulk(ctx context.Context, concepts []*entity.Concept) error {
	if len(concepts) == 0 {
		return nil
	}
	models := r.mapper.ToModels(concepts)
	if err := r.db.WithContext(ctx).Create(&models).Error; err != nil {
		return err
	}
	for i, m := range models {
		*concepts[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *ConceptRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Concept, error) {
	var m model.Concept
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ConceptRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Concept, error) {
	var models []*model.Concept
	query := r.applySpecifications(r.db.WithContext(ctx).Scopes(scope.StableOrder), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *ConceptRepositoryImpl) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	return r.db.WithContext(ctx).
		Model(&model.Concept{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *ConceptRepositoryImpl) AdjustCounter(ctx context.Context, id uuid.UUID, kind entity.VoteKind, delta int) error {
	column := kind.CounterColumn()
	if column == "" {
		return fmt.Errorf("no counter for vote kind %q", kind)
	}
	// CASE keeps the clamp portable across postgres and sqlite.
	expr := gorm.Expr(fmt.Sprintf("CASE WHEN %[1]s + ? < 0 THEN 0 ELSE %[1]s + ? END", column), delta, delta)
	res := r.db.WithContext(ctx).
		Model(&model.Concept{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			column:       expr,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ConceptRepositoryImpl) DeactivateByWorkItem(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).
		Model(&model.Concept{}).
		Where("work_item_key = ? AND status = ?", key, string(entity.ConceptActive)).
		Updates(map[string]interface{}{
			"status":     string(entity.ConceptInactive),
			"updated_at": time.Now(),
		}).Error
}
