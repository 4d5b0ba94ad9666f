package run

import (
	"context"
	"errors"
	"time"

	"github.com/hairizuan-noorazman/scenario-runner/logger"
	"gorm.io/gorm"
)

// MySQLStore implements Store using GORM.
type MySQLStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewMySQLStore creates a GORM-backed run store.
func NewMySQLStore(db *gorm.DB, log logger.Logger) *MySQLStore {
	return &MySQLStore{db: db, logger: log}
}

// Create inserts a run in the running state.
func (s *MySQLStore) Create(ctx context.Context, r *Run) error {
	if r.Status == "" {
		r.Status = StatusRunning
	}
	if r.StartedAt == nil {
		now := time.Now()
		r.StartedAt = &now
	}
	if err := r.Validate(); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		s.logger.Error(ctx, "failed to create run", map[string]interface{}{
			"error":  err.Error(),
			"run_id": r.RunID,
		})
		return err
	}

	s.logger.Info(ctx, "run created", map[string]interface{}{
		"run_id":      r.RunID,
		"scenario_id": r.ScenarioID.String(),
	})
	return nil
}

// Get retrieves a run by correlation id.
func (s *MySQLStore) Get(ctx context.Context, runID string) (*Run, error) {
	var r Run
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		s.logger.Error(ctx, "failed to get run", map[string]interface{}{
			"error":  err.Error(),
			"run_id": runID,
		})
		return nil, err
	}
	return &r, nil
}

// AppendLog adds one entry to the run's stored log.
func (s *MySQLStore) AppendLog(ctx context.Context, runID string, entry LogEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r Run
		if err := tx.Where("run_id = ?", runID).First(&r).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRunNotFound
			}
			return err
		}
		r.Logs = append(r.Logs, entry)
		return tx.Model(&Run{}).Where("run_id = ?", runID).Update("logs", r.Logs).Error
	})
}

// SetScreenshot records the latest screenshot url.
func (s *MySQLStore) SetScreenshot(ctx context.Context, runID, url string) error {
	result := s.db.WithContext(ctx).
		Model(&Run{}).
		Where("run_id = ?", runID).
		Update("screenshot", url)
	if result.Error != nil {
		s.logger.Error(ctx, "failed to set run screenshot", map[string]interface{}{
			"error":  result.Error.Error(),
			"run_id": runID,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// Complete writes the final snapshot.
func (s *MySQLStore) Complete(ctx context.Context, runID string, outcome Outcome) error {
	r, err := s.Get(ctx, runID)
	if err != nil {
		return err
	}

	if err := r.Complete(outcome.Status, outcome.Error); err != nil {
		return err
	}
	if outcome.Logs != nil {
		r.Logs = outcome.Logs
	}
	if outcome.Screenshot != "" {
		r.Screenshot = outcome.Screenshot
	}
	r.TokenUsage = outcome.Usage

	if err := s.db.WithContext(ctx).Save(r).Error; err != nil {
		s.logger.Error(ctx, "failed to complete run", map[string]interface{}{
			"error":  err.Error(),
			"run_id": runID,
		})
		return err
	}

	s.logger.Info(ctx, "run completed", map[string]interface{}{
		"run_id": runID,
		"status": outcome.Status,
	})
	return nil
}
