// Package scenario holds test scenarios: a start URL plus an ordered list of
// declarative steps, and the store that persists them.
package scenario

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrScenarioNotFound is returned when a scenario is not found.
	ErrScenarioNotFound = errors.New("scenario not found")

	// ErrInvalidScenarioName is returned when the name is empty.
	ErrInvalidScenarioName = errors.New("scenario name is required")

	// ErrInvalidStartURL is returned when the start url is empty.
	ErrInvalidStartURL = errors.New("scenario start_url is required")

	// ErrInvalidSteps is returned when the step list is malformed.
	ErrInvalidSteps = errors.New("invalid steps")
)

// Scenario is a named, ordered list of steps run against StartURL.
type Scenario struct {
	ID        uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	StartURL  string    `json:"startUrl" gorm:"type:text;not null"`
	Steps     Steps     `json:"steps" gorm:"type:json"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns an id when none is set.
func (s *Scenario) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Validate checks required fields and the step list.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return ErrInvalidScenarioName
	}
	if s.StartURL == "" {
		return ErrInvalidStartURL
	}
	return s.Steps.Validate()
}
