package pageindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanHTML(t *testing.T) {
	html := `<html><head><title>Login</title><style>.a{color:red}</style>
<script>window.x = 1</script></head>
<body>
<!-- tracking pixel -->
<svg><path d="M0 0"/></svg>

<button id="go">Sign in</button>
<noscript>Enable JS</noscript>
</body></html>`

	out, err := CleanHTML(html)
	require.NoError(t, err)

	assert.Contains(t, out, `<button id="go">Sign in</button>`)
	assert.NotContains(t, out, "window.x")
	assert.NotContains(t, out, "color:red")
	assert.NotContains(t, out, "tracking pixel")
	assert.NotContains(t, out, "<svg")
	assert.NotContains(t, out, "Enable JS")
	assert.NotContains(t, out, "\n\n")
}
