package mapper

import (
	"time"

	"concept-review-be/internal/entity"
	"concept-review-be/internal/model"
)

type VoteMapper struct{}

func NewVoteMapper() *VoteMapper {
	return &VoteMapper{}
}

func (m *VoteMapper) ToEntity(v *model.Vote) *entity.Vote {
	if v == nil {
		return nil
	}

	var updatedAt *time.Time
	if !v.UpdatedAt.IsZero() {
		t := v.UpdatedAt
		updatedAt = &t
	}

	return &entity.Vote{
		UserId:      v.UserId,
		ConceptId:   v.ConceptId,
		WorkItemKey: v.WorkItemKey,
		Kind:        entity.VoteKind(v.Kind),
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   updatedAt,
	}
}

func (m *VoteMapper) ToModel(v *entity.Vote) *model.Vote {
	if v == nil {
		return nil
	}

	var updatedAt time.Time
	if v.UpdatedAt != nil {
		updatedAt = *v.UpdatedAt
	}

	return &model.Vote{
		UserId:      v.UserId,
		ConceptId:   v.ConceptId,
		WorkItemKey: v.WorkItemKey,
		Kind:        string(v.Kind),
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   updatedAt,
	}
}

func (m *VoteMapper) ToEntities(votes []*model.Vote) []*entity.Vote {
	entities := make([]*entity.Vote, len(votes))
	for i, v := range votes {
		entities[i] = m.ToEntity(v)
	}
	return entities
}
