package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairizuan-noorazman/scenario-runner/logger"
	"github.com/hairizuan-noorazman/scenario-runner/scenario"
)

const loginYAML = `
name: Login
startUrl: https://example.com/login
email: qa@example.com
steps:
  - id: 1
    actionType: Fill Input
    details:
      element: email field
      value: user@example.com
  - id: 2
    actionType: Delay
    delayTime: "1500"
  - id: 3
    actionType: Import Reusable Test
    importedTestId: 6f1c2b1e-1d5e-4a53-9b1e-0d0c3f4a7a11
imports:
  - id: 6f1c2b1e-1d5e-4a53-9b1e-0d0c3f4a7a11
    name: Accept cookies
    startUrl: https://example.com
    steps:
      - id: 1
        actionType: Click Element
        details:
          element: Accept button
`

func TestDecodeScenarioDocument_YAML(t *testing.T) {
	doc, err := decodeScenarioDocument(strings.NewReader(loginYAML))
	require.NoError(t, err)

	assert.Equal(t, "Login", doc.Name)
	assert.Equal(t, "https://example.com/login", doc.StartURL)
	assert.Equal(t, "qa@example.com", doc.Email)
	require.Len(t, doc.Steps, 3)
	assert.Equal(t, scenario.FillInput{Element: "email field", Value: "user@example.com"}, doc.Steps[0].Action)
	assert.Equal(t, scenario.Delay{Duration: 1500 * time.Millisecond}, doc.Steps[1].Action)
	assert.Equal(t, scenario.ImportReusableTest{ScenarioID: "6f1c2b1e-1d5e-4a53-9b1e-0d0c3f4a7a11"}, doc.Steps[2].Action)

	require.Len(t, doc.Imports, 1)
	assert.Equal(t, uuid.MustParse("6f1c2b1e-1d5e-4a53-9b1e-0d0c3f4a7a11"), doc.Imports[0].ID)
	assert.Equal(t, scenario.ClickElement{Element: "Accept button"}, doc.Imports[0].Steps[0].Action)
}

func TestDecodeScenarioDocument_JSON(t *testing.T) {
	doc, err := decodeScenarioDocument(strings.NewReader(`{
		"name": "Search",
		"startUrl": "https://example.com",
		"steps": [{"id": 1, "actionType": "AI Visual Assertion", "question": "Is the logo visible?"}]
	}`))
	require.NoError(t, err)
	require.Len(t, doc.Steps, 1)
	assert.Equal(t, scenario.VisualAssertion{Question: "Is the logo visible?"}, doc.Steps[0].Action)
}

func TestDecodeScenarioDocument_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "malformed yaml",
			input: "name: [unterminated",
		},
		{
			name: "unknown action",
			input: `
name: Broken
startUrl: https://example.com
steps:
  - id: 1
    actionType: Hover
`,
		},
		{
			name: "import without name",
			input: `
name: Parent
startUrl: https://example.com
steps: []
imports:
  - startUrl: https://example.com
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeScenarioDocument(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestStoreImports(t *testing.T) {
	db, err := connectSQLite("")
	require.NoError(t, err)
	store := scenario.NewMySQLStore(db, logger.NewTestLogger())

	doc, err := decodeScenarioDocument(strings.NewReader(loginYAML))
	require.NoError(t, err)
	require.NoError(t, storeImports(context.Background(), store, doc.Imports))

	got, err := store.FetchByID(context.Background(), doc.Imports[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Accept cookies", got.Name)
	require.Len(t, got.Steps, 1)
}
