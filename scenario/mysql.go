package scenario

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hairizuan-noorazman/scenario-runner/logger"
	"gorm.io/gorm"
)

// MySQLStore implements Store using GORM.
type MySQLStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewMySQLStore creates a GORM-backed scenario store.
func NewMySQLStore(db *gorm.DB, log logger.Logger) *MySQLStore {
	return &MySQLStore{db: db, logger: log}
}

// Create validates and inserts a scenario.
func (s *MySQLStore) Create(ctx context.Context, sc *Scenario) error {
	if err := sc.Validate(); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(sc).Error; err != nil {
		s.logger.Error(ctx, "failed to create scenario", map[string]interface{}{
			"error": err.Error(),
			"name":  sc.Name,
		})
		return err
	}

	s.logger.Info(ctx, "scenario created", map[string]interface{}{
		"scenario_id": sc.ID.String(),
		"steps":       len(sc.Steps),
	})
	return nil
}

// FetchByID retrieves a scenario by id.
func (s *MySQLStore) FetchByID(ctx context.Context, id uuid.UUID) (*Scenario, error) {
	var sc Scenario
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&sc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScenarioNotFound
		}
		s.logger.Error(ctx, "failed to fetch scenario", map[string]interface{}{
			"error":       err.Error(),
			"scenario_id": id.String(),
		})
		return nil, err
	}
	return &sc, nil
}

// Update applies setters to the stored scenario and saves it.
func (s *MySQLStore) Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error {
	sc, err := s.FetchByID(ctx, id)
	if err != nil {
		return err
	}

	for _, setter := range setters {
		if err := setter(sc); err != nil {
			return err
		}
	}

	if err := s.db.WithContext(ctx).Save(sc).Error; err != nil {
		s.logger.Error(ctx, "failed to update scenario", map[string]interface{}{
			"error":       err.Error(),
			"scenario_id": id.String(),
		})
		return err
	}
	return nil
}

// UpdateSteps overwrites the steps column only, leaving other fields untouched.
func (s *MySQLStore) UpdateSteps(ctx context.Context, id uuid.UUID, steps Steps) error {
	result := s.db.WithContext(ctx).
		Model(&Scenario{}).
		Where("id = ?", id).
		Update("steps", steps)
	if result.Error != nil {
		s.logger.Error(ctx, "failed to update scenario steps", map[string]interface{}{
			"error":       result.Error.Error(),
			"scenario_id": id.String(),
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrScenarioNotFound
	}

	s.logger.Debug(ctx, "scenario steps updated", map[string]interface{}{
		"scenario_id": id.String(),
		"steps":       len(steps),
	})
	return nil
}

// List returns scenarios ordered by newest first.
func (s *MySQLStore) List(ctx context.Context, limit, offset int) ([]*Scenario, error) {
	var scenarios []*Scenario
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&scenarios).Error
	if err != nil {
		s.logger.Error(ctx, "failed to list scenarios", map[string]interface{}{
			"error":  err.Error(),
			"limit":  limit,
			"offset": offset,
		})
		return nil, err
	}
	return scenarios, nil
}
