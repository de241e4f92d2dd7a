package fetcher

import (
	"fmt"

	"concept-review-be/internal/entity"

	"github.com/google/uuid"
)

var testConceptIds = []uuid.UUID{
	uuid.MustParse("7d0b3a6e-1f7c-4a39-9a44-000000000001"),
	uuid.MustParse("7d0b3a6e-1f7c-4a39-9a44-000000000002"),
	uuid.MustParse("7d0b3a6e-1f7c-4a39-9a44-000000000003"),
}

// TestData is the fixed synthetic item served in test-data mode. No I/O.
func TestData(key string) *Result {
	item := &entity.WorkItem{
		Key:              key,
		Title:            "Sample product",
		OriginalImageURL: "/static/test/original.png",
		Prompt:           "Minimal packaging, pastel palette, studio lighting.",
		Status:           entity.ProcessingCompleted,
		Ready:            true,
	}
	concepts := make([]*entity.Concept, len(testConceptIds))
	for i, id := range testConceptIds {
		concepts[i] = &entity.Concept{
			Id:          id,
			WorkItemKey: key,
			ImageURL:    fmt.Sprintf("/static/test/concept-%d.png", i+1),
			Status:      entity.ConceptActive,
		}
	}
	return &Result{
		Key:      key,
		WorkItem: item,
		Original: Artifact{Id: "original", URL: item.OriginalImageURL},
		Concepts: concepts,
		TestData: true,
	}
}
