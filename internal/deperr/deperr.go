// Package deperr classifies failures of external collaborators (blob storage,
// model providers, embedding services, the browser backend).
package deperr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable marks a failure to reach an external dependency.
var ErrUnavailable = errors.New("dependency unavailable")

// UnavailableError names the dependency that could not be reached.
type UnavailableError struct {
	Dependency string
	Err        error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Dependency, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

// Unavailable wraps err as an UnavailableError for dependency.
func Unavailable(dependency string, err error) error {
	if err == nil {
		return nil
	}
	return &UnavailableError{Dependency: dependency, Err: err}
}

var rateLimitMarkers = []string{
	"rate limit",
	"ratelimit",
	"too many requests",
	"resource exhausted",
	"resource_exhausted",
	"429",
	"throttl",
}

// IsRateLimited reports whether err looks like a provider throttling response.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
