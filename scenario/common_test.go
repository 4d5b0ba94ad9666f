package scenario

import (
	"testing"

	"github.com/hairizuan-noorazman/scenario-runner/logger"
	"github.com/hairizuan-noorazman/scenario-runner/testutil"
	"gorm.io/gorm"
)

func setupTestStore(t *testing.T) (*gorm.DB, *MySQLStore) {
	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db, &Scenario{})
	return db, NewMySQLStore(db, logger.NewTestLogger())
}

func loginScenario() *Scenario {
	return &Scenario{
		Name:     "login",
		StartURL: "https://example.test/login",
		Steps: Steps{
			{ID: 1, Action: FillInput{Description: "email field", Value: "a@b.com"}},
			{ID: 2, Action: ClickElement{Element: "Submit"}},
		},
	}
}
