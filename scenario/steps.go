package scenario

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Steps is the ordered step list of a scenario, stored as a JSON column.
type Steps []Step

// Value implements driver.Valuer.
func (s Steps) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *Steps) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("failed to scan Steps: unsupported column type")
	}
	return json.Unmarshal(data, s)
}

// Clone returns an independent copy. Action payloads are value types, so a
// shallow element copy is a deep copy.
func (s Steps) Clone() Steps {
	if s == nil {
		return nil
	}
	out := make(Steps, len(s))
	copy(out, s)
	return out
}

// Validate checks every step and that step ids are unique.
func (s Steps) Validate() error {
	seen := make(map[int]bool, len(s))
	for _, step := range s {
		if err := step.Validate(); err != nil {
			return err
		}
		if seen[step.ID] {
			return fmt.Errorf("%w: duplicate step id %d", ErrInvalidSteps, step.ID)
		}
		seen[step.ID] = true
	}
	return nil
}
