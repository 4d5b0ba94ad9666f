package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
)

// ErrInvalidLink is returned when a shared run token fails verification.
var ErrInvalidLink = errors.New("invalid or expired link")

const linkName = "run"

// RunLinker issues signed tokens that grant read access to one run.
type RunLinker struct {
	codec   *securecookie.SecureCookie
	baseURL string
}

// NewRunLinker creates a linker. blockKey may be nil to sign without
// encrypting. A ttl of zero keeps links valid indefinitely.
func NewRunLinker(hashKey, blockKey []byte, baseURL string, ttl time.Duration) *RunLinker {
	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(int(ttl / time.Second))
	return &RunLinker{codec: codec, baseURL: strings.TrimRight(baseURL, "/")}
}

// Token signs runID.
func (l *RunLinker) Token(runID string) (string, error) {
	return l.codec.Encode(linkName, runID)
}

// RunID verifies token and returns the run it grants access to.
func (l *RunLinker) RunID(token string) (string, error) {
	var runID string
	if err := l.codec.Decode(linkName, token, &runID); err != nil {
		return "", ErrInvalidLink
	}
	return runID, nil
}

// URL returns the shared link for runID, or "" when signing fails.
func (l *RunLinker) URL(runID string) string {
	token, err := l.Token(runID)
	if err != nil {
		return ""
	}
	return l.baseURL + "/api/v1/shared/runs/" + token
}
