package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type WorkItem struct {
	Key              string         `gorm:"column:item_key;type:varchar(64);primaryKey"`
	Title            string         `gorm:"type:varchar(255);not null"`
	OriginalImageURL string         `gorm:"type:text"`
	Prompt           string         `gorm:"type:text"`
	Regenerating     bool           `gorm:"not null;default:false"`
	Status           string         `gorm:"type:varchar(32);not null;default:'pending'"`
	Ready            bool           `gorm:"not null;default:false"`
	WinningConceptId *uuid.UUID     `gorm:"type:uuid"`
	Metadata         datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt        time.Time      `gorm:"autoCreateTime"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime"`
}

func (WorkItem) TableName() string {
	return "work_items"
}
