package run

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hairizuan-noorazman/scenario-runner/logger"
	"github.com/hairizuan-noorazman/scenario-runner/testutil"
	"gorm.io/gorm"
)

func setupTestStore(t *testing.T) (*gorm.DB, *MySQLStore) {
	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db, &Run{})
	return db, NewMySQLStore(db, logger.NewTestLogger())
}

func createTestRun(runID string) *Run {
	return &Run{
		RunID:      runID,
		ScenarioID: uuid.New(),
		Name:       "login",
	}
}
