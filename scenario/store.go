package scenario

import (
	"context"

	"github.com/google/uuid"
)

// Store persists scenarios. The engine only reads scenarios and writes back
// step memo fields through UpdateSteps.
type Store interface {
	Create(ctx context.Context, s *Scenario) error
	FetchByID(ctx context.Context, id uuid.UUID) (*Scenario, error)
	Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error
	// UpdateSteps replaces the stored step list. Last write wins.
	UpdateSteps(ctx context.Context, id uuid.UUID, steps Steps) error
	List(ctx context.Context, limit, offset int) ([]*Scenario, error)
}

// UpdateSetter mutates a scenario before it is saved.
type UpdateSetter func(*Scenario) error
