package scenario

// SetName returns an UpdateSetter that renames the scenario.
func SetName(name string) UpdateSetter {
	return func(s *Scenario) error {
		if name == "" {
			return ErrInvalidScenarioName
		}
		s.Name = name
		return nil
	}
}

// SetStartURL returns an UpdateSetter that changes the start url.
func SetStartURL(url string) UpdateSetter {
	return func(s *Scenario) error {
		if url == "" {
			return ErrInvalidStartURL
		}
		s.StartURL = url
		return nil
	}
}

// SetSteps returns an UpdateSetter that replaces the step list.
func SetSteps(steps Steps) UpdateSetter {
	return func(s *Scenario) error {
		if err := steps.Validate(); err != nil {
			return err
		}
		s.Steps = steps.Clone()
		return nil
	}
}
