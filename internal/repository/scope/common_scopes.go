package scope

import "gorm.io/gorm"

// StableOrder breaks created_at ties so concept lists render in the same order on every fetch.
func StableOrder(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}
