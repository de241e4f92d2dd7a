package entity

import (
	"time"

	"github.com/google/uuid"
)

// CompletionRecord marks that a user finished reviewing a WorkItem.
type CompletionRecord struct {
	UserId      uuid.UUID
	WorkItemKey string
	CompletedAt time.Time
}
