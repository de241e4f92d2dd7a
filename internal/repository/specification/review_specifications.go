package specification

import (
	"concept-review-be/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByWorkItemKey struct {
	Key string
}

func (s ByWorkItemKey) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("item_key = ?", s.Key)
}

// InWorkItem filters child rows (concepts, votes, completions) by their owning item.
type InWorkItem struct {
	Key string
}

func (s InWorkItem) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("work_item_key = ?", s.Key)
}

type ActiveConcepts struct{}

func (s ActiveConcepts) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", string(entity.ConceptActive))
}

type ByUserID struct {
	UserID uuid.UUID
}

func (s ByUserID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

type ByConceptID struct {
	ConceptID uuid.UUID
}

func (s ByConceptID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("concept_id = ?", s.ConceptID)
}
