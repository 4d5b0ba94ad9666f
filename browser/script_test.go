package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall(t *testing.T) {
	loc, err := ParseLocator(`button:has-text("Say \"hi\"")`)
	require.NoError(t, err)

	expr, err := call("point", loc, 2)
	require.NoError(t, err)
	assert.Equal(t, `window.__runner.point({"kind":"css","expr":"button","exact":false,"hasText":["Say \"hi\""]},2)`, expr)

	expr, err = call("untag", "ref-1")
	require.NoError(t, err)
	assert.Equal(t, `window.__runner.untag("ref-1")`, expr)
}
