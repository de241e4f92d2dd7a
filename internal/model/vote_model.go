package model

import (
	"time"

	"github.com/google/uuid"
)

// Vote has one row per (user, concept); re-voting overwrites the kind.
type Vote struct {
	UserId      uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConceptId   uuid.UUID `gorm:"type:uuid;primaryKey"`
	WorkItemKey string    `gorm:"type:varchar(64);not null;index"`
	Kind        string    `gorm:"type:varchar(16);not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (Vote) TableName() string {
	return "votes"
}
