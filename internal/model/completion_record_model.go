package model

import (
	"time"

	"github.com/google/uuid"
)

type CompletionRecord struct {
	UserId      uuid.UUID `gorm:"type:uuid;primaryKey"`
	WorkItemKey string    `gorm:"type:varchar(64);primaryKey"`
	CompletedAt time.Time `gorm:"not null"`
}

func (CompletionRecord) TableName() string {
	return "completion_records"
}
