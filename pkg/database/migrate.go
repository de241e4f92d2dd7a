package database

import (
	"concept-review-be/internal/model"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates the review tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.WorkItem{},
		&model.Concept{},
		&model.Vote{},
		&model.CompletionRecord{},
	)
}
