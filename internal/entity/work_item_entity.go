package entity

import (
	"time"

	"github.com/google/uuid"
)

type ProcessingStatus string

const (
	ProcessingPending   ProcessingStatus = "pending"
	ProcessingRunning   ProcessingStatus = "processing"
	ProcessingCompleted ProcessingStatus = "completed"
	ProcessingFailed    ProcessingStatus = "failed"
)

// WorkItem is the unit of review, keyed by the product's external key (ASIN).
type WorkItem struct {
	Key              string
	Title            string
	OriginalImageURL string
	Prompt           string
	Regenerating     bool
	Status           ProcessingStatus
	Ready            bool
	WinningConceptId *uuid.UUID
	Metadata         map[string]interface{}
	CreatedAt        time.Time
	UpdatedAt        *time.Time
}

func (w *WorkItem) HasWinner() bool {
	return w != nil && w.WinningConceptId != nil && *w.WinningConceptId != uuid.Nil
}
