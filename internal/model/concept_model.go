package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Concept struct {
	Id              uuid.UUID `gorm:"type:uuid;primaryKey"`
	WorkItemKey     string    `gorm:"type:varchar(64);not null;index"`
	ImageURL        string    `gorm:"type:text;not null"`
	Up              int       `gorm:"not null;default:0"`
	Down            int       `gorm:"not null;default:0"`
	Hearts          int       `gorm:"not null;default:0"`
	Status          string    `gorm:"type:varchar(16);not null;default:'active';index"`
	RepairRequested bool      `gorm:"not null;default:false"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (Concept) TableName() string {
	return "concepts"
}

func (c *Concept) BeforeCreate(tx *gorm.DB) error {
	if c.Id == uuid.Nil {
		c.Id = uuid.New()
	}
	return nil
}
