package testutil

import (
	"testing"

	"gorm.io/gorm"
)

// CreateFixtures inserts rows directly, bypassing store validation and hooks
// other than gorm's own.
func CreateFixtures(t *testing.T, db *gorm.DB, models ...interface{}) {
	t.Helper()
	for _, model := range models {
		if err := db.Create(model).Error; err != nil {
			t.Fatalf("failed to create fixture %T: %v", model, err)
		}
	}
}

// CountRows returns the number of rows in model's table.
func CountRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("failed to count %T: %v", model, err)
	}
	return n
}
