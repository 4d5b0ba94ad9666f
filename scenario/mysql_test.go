package scenario

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairizuan-noorazman/scenario-runner/testutil"
)

func TestMySQLStore_CreateAndFetch(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	t.Run("round trips steps", func(t *testing.T) {
		sc := loginScenario()
		require.NoError(t, store.Create(ctx, sc))
		assert.NotEqual(t, uuid.Nil, sc.ID)

		got, err := store.FetchByID(ctx, sc.ID)
		require.NoError(t, err)
		assert.Equal(t, sc.Name, got.Name)
		require.Len(t, got.Steps, 2)
		assert.Equal(t, FillInput{Description: "email field", Value: "a@b.com"}, got.Steps[0].Action)
		assert.Equal(t, ClickElement{Element: "Submit"}, got.Steps[1].Action)
	})

	t.Run("invalid scenario is rejected", func(t *testing.T) {
		err := store.Create(ctx, &Scenario{StartURL: "https://x.test"})
		assert.ErrorIs(t, err, ErrInvalidScenarioName)
	})

	t.Run("missing scenario", func(t *testing.T) {
		_, err := store.FetchByID(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrScenarioNotFound)
	})
}

func TestMySQLStore_UpdateSteps(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	sc := loginScenario()
	require.NoError(t, store.Create(ctx, sc))

	steps := sc.Steps.Clone()
	steps[1].Cache = true
	steps[1].Selector = "button#submit"
	steps[1].ImageOnlyAttempted = true
	require.NoError(t, store.UpdateSteps(ctx, sc.ID, steps))

	got, err := store.FetchByID(ctx, sc.ID)
	require.NoError(t, err)
	assert.True(t, got.Steps[1].Cache)
	assert.Equal(t, "button#submit", got.Steps[1].Selector)
	assert.True(t, got.Steps[1].ImageOnlyAttempted)
	assert.Equal(t, "login", got.Name)

	assert.ErrorIs(t, store.UpdateSteps(ctx, uuid.New(), steps), ErrScenarioNotFound)
}

func TestMySQLStore_Update(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	sc := loginScenario()
	require.NoError(t, store.Create(ctx, sc))

	require.NoError(t, store.Update(ctx, sc.ID, SetName("login v2"), SetStartURL("https://example.test/v2")))
	got, err := store.FetchByID(ctx, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, "login v2", got.Name)
	assert.Equal(t, "https://example.test/v2", got.StartURL)

	assert.ErrorIs(t, store.Update(ctx, sc.ID, SetName("")), ErrInvalidScenarioName)
}

func TestMySQLStore_List(t *testing.T) {
	db, store := setupTestStore(t)
	ctx := context.Background()

	testutil.CreateFixtures(t, db, loginScenario(), loginScenario(), loginScenario())
	require.EqualValues(t, 3, testutil.CountRows(t, db, &Scenario{}))

	page, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := store.List(ctx, 10, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}
