package mapper

import (
	"time"

	"concept-review-be/internal/entity"
	"concept-review-be/internal/model"
)

type ConceptMapper struct{}

func NewConceptMapper() *ConceptMapper {
	return &ConceptMapper{}
}

func (m *ConceptMapper) ToEntity(c *model.Concept) *entity.Concept {
	if c == nil {
		return nil
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	return &entity.Concept{
		Id:              c.Id,
		WorkItemKey:     c.WorkItemKey,
		ImageURL:        c.ImageURL,
		Up:              c.Up,
		Down:            c.Down,
		Hearts:          c.Hearts,
		Status:          entity.ConceptStatus(c.Status),
		RepairRequested: c.RepairRequested,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       updatedAt,
	}
}

func (m *ConceptMapper) ToModel(c *entity.Concept) *model.Concept {
	if c == nil {
		return nil
	}

	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	status := string(c.Status)
	if status == "" {
		status = string(entity.ConceptActive)
	}

	return &model.Concept{
		Id:              c.Id,
		WorkItemKey:     c.WorkItemKey,
		ImageURL:        c.ImageURL,
		Up:              c.Up,
		Down:            c.Down,
		Hearts:          c.Hearts,
		Status:          status,
		RepairRequested: c.RepairRequested,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       updatedAt,
	}
}

func (m *ConceptMapper) ToEntities(concepts []*model.Concept) []*entity.Concept {
	entities := make([]*entity.Concept, len(concepts))
	for i, c := range concepts {
		entities[i] = m.ToEntity(c)
	}
	return entities
}

func (m *ConceptMapper) ToModels(concepts []*entity.Concept) []*model.Concept {
	models := make([]*model.Concept, len(concepts))
	for i, c := range concepts {
		models[i] = m.ToModel(c)
	}
	return models
}
