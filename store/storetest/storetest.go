// Package storetest holds the behaviour every store.Store must share.
// Implementations call Run from their own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/joint-cost-engine/store"
)

// Run exercises a fresh store per subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("profiles", func(t *testing.T) { testProfiles(t, newStore(t)) })
	t.Run("runs", func(t *testing.T) { testRuns(t, newStore(t)) })
	t.Run("duplicate run", func(t *testing.T) { testDuplicateRun(t, newStore(t)) })
	t.Run("missing records", func(t *testing.T) { testMissing(t, newStore(t)) })
}

func testProfiles(t *testing.T, st store.Store) {
	ctx := context.Background()

	require.NoError(t, st.SaveProfile(ctx, store.ProfileRecord{Name: "b", ConfigJSON: `{"name":"b"}`}))
	require.NoError(t, st.SaveProfile(ctx, store.ProfileRecord{Name: "a", ConfigJSON: `{"name":"a"}`}))
	require.NoError(t, st.SaveProfile(ctx, store.ProfileRecord{Name: "a", ConfigJSON: `{"name":"a","whole_bird_only":true}`}))

	p, err := st.GetProfile(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 2, p.Version, "re-saving bumps the version")
	assert.Contains(t, p.ConfigJSON, "whole_bird_only")
	assert.False(t, p.CreatedAt.IsZero())

	list, err := st.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, "b", list[1].Name)

	require.NoError(t, st.DeleteProfile(ctx, "a"))
	p, err = st.GetProfile(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func testRuns(t *testing.T, st store.Store) {
	// GIVEN: Three runs over two batches
	// WHEN: Listing all runs and one batch's runs
	// THEN: Newest first, filtered, limited

	ctx := context.Background()
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	runs := []store.RunRecord{
		{ID: "r1", BatchID: "B1", Profile: "p", KFactor: decimal.RequireFromString("0.7389"), WarningCount: 0, CreatedAt: base},
		{ID: "r2", BatchID: "B2", Profile: "p", KFactor: decimal.RequireFromString("1.02"), WarningCount: 2, CreatedAt: base.Add(time.Hour)},
		{ID: "r3", BatchID: "B1", Profile: "p", KFactor: decimal.RequireFromString("0.8"), WarningCount: 1, CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, r := range runs {
		r.InputJSON = `{"batch":{"batch_id":"` + r.BatchID + `"}}`
		r.ResultJSON = `{}`
		require.NoError(t, st.SaveRun(ctx, r))
	}

	all, err := st.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"r3", "r2", "r1"}, []string{all[0].ID, all[1].ID, all[2].ID})

	b1, err := st.ListRuns(ctx, store.RunFilter{BatchID: "B1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, b1, 1)
	assert.Equal(t, "r3", b1[0].ID)

	got, err := st.GetRun(ctx, "r2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1.02", got.KFactor.String())
	assert.Equal(t, 2, got.WarningCount)
	assert.Contains(t, got.InputJSON, "B2")
	assert.True(t, got.CreatedAt.Equal(base.Add(time.Hour)))
}

func testDuplicateRun(t *testing.T, st store.Store) {
	ctx := context.Background()
	r := store.RunRecord{ID: "dup", BatchID: "B", Profile: "p", InputJSON: "{}", ResultJSON: "{}"}

	require.NoError(t, st.SaveRun(ctx, r))
	assert.ErrorIs(t, st.SaveRun(ctx, r), store.ErrDuplicateRun)
}

func testMissing(t *testing.T, st store.Store) {
	ctx := context.Background()

	p, err := st.GetProfile(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, p)

	r, err := st.GetRun(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, r)

	runs, err := st.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}
