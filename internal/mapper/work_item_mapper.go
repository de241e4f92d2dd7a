package mapper

import (
	"encoding/json"
	"time"

	"concept-review-be/internal/entity"
	"concept-review-be/internal/model"

	"gorm.io/datatypes"
)

type WorkItemMapper struct{}

func NewWorkItemMapper() *WorkItemMapper {
	return &WorkItemMapper{}
}

func (m *WorkItemMapper) ToEntity(w *model.WorkItem) *entity.WorkItem {
	if w == nil {
		return nil
	}

	var updatedAt *time.Time
	if !w.UpdatedAt.IsZero() {
		t := w.UpdatedAt
		updatedAt = &t
	}

	var metadata map[string]interface{}
	if len(w.Metadata) > 0 {
		// Malformed metadata is dropped rather than failing the read.
		_ = json.Unmarshal(w.Metadata, &metadata)
	}

	return &entity.WorkItem{
		Key:              w.Key,
		Title:            w.Title,
		OriginalImageURL: w.OriginalImageURL,
		Prompt:           w.Prompt,
		Regenerating:     w.Regenerating,
		Status:           entity.ProcessingStatus(w.Status),
		Ready:            w.Ready,
		WinningConceptId: w.WinningConceptId,
		Metadata:         metadata,
		CreatedAt:        w.CreatedAt,
		UpdatedAt:        updatedAt,
	}
}

func (m *WorkItemMapper) ToModel(w *entity.WorkItem) *model.WorkItem {
	if w == nil {
		return nil
	}

	var updatedAt time.Time
	if w.UpdatedAt != nil {
		updatedAt = *w.UpdatedAt
	}

	var metadata datatypes.JSON
	if w.Metadata != nil {
		raw, err := json.Marshal(w.Metadata)
		if err == nil {
			metadata = datatypes.JSON(raw)
		}
	}

	status := string(w.Status)
	if status == "" {
		status = string(entity.ProcessingPending)
	}

	return &model.WorkItem{
		Key:              w.Key,
		Title:            w.Title,
		OriginalImageURL: w.OriginalImageURL,
		Prompt:           w.Prompt,
		Regenerating:     w.Regenerating,
		Status:           status,
		Ready:            w.Ready,
		WinningConceptId: w.WinningConceptId,
		Metadata:         metadata,
		CreatedAt:        w.CreatedAt,
		UpdatedAt:        updatedAt,
	}
}
