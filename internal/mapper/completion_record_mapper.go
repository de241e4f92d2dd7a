package mapper

import (
	"concept-review-be/internal/entity"
	"concept-review-be/internal/model"
)

type CompletionRecordMapper struct{}

func NewCompletionRecordMapper() *CompletionRecordMapper {
	return &CompletionRecordMapper{}
}

func (m *CompletionRecordMapper) ToEntity(r *model.CompletionRecord) *entity.CompletionRecord {
	if r == nil {
		return nil
	}
	return &entity.CompletionRecord{
		UserId:      r.UserId,
		WorkItemKey: r.WorkItemKey,
		CompletedAt: r.CompletedAt,
	}
}

func (m *CompletionRecordMapper) ToModel(r *entity.CompletionRecord) *model.CompletionRecord {
	if r == nil {
		return nil
	}
	return &model.CompletionRecord{
		UserId:      r.UserId,
		WorkItemKey: r.WorkItemKey,
		CompletedAt: r.CompletedAt,
	}
}
