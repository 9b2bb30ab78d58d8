// Package storetest holds the behavioral contract every engine.Store backing must satisfy.
package storetest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorekit/core"
	"scorekit/engine"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) engine.Store

var (
	Expert   = core.BoardKey{GameType: "minesweeper", Difficulty: "expert"}
	Beginner = core.BoardKey{GameType: "minesweeper", Difficulty: "beginner"}
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// Entry builds a stored entry for key with a deterministic id and timestamp.
func Entry(key core.BoardKey, n int, score float64, name string) core.ScoreEntry {
	return core.ScoreEntry{
		ID:         fmt.Sprintf("entry-%04d", n),
		GameType:   key.GameType,
		Difficulty: key.Difficulty,
		Score:      score,
		PlayerName: name,
		Timestamp:  base.Add(time.Duration(n) * time.Millisecond),
		GameConfig: &core.GameConfig{BoardWidth: 30, BoardHeight: 16, MinesCount: 99},
	}
}

// Run executes the full contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("EmptyBoard", func(t *testing.T) { testEmptyBoard(t, newStore(t)) })
	t.Run("AscendingOrder", func(t *testing.T) { testAscendingOrder(t, newStore(t)) })
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newStore(t)) })
	t.Run("Limit", func(t *testing.T) { testLimit(t, newStore(t)) })
	t.Run("RetainsBestHundred", func(t *testing.T) { testRetainsBestHundred(t, newStore(t)) })
	t.Run("RandomSubmissions", func(t *testing.T) { testRandomSubmissions(t, newStore(t)) })
	t.Run("TiesByTimestamp", func(t *testing.T) { testTies(t, newStore(t)) })
	t.Run("BoardsIndependent", func(t *testing.T) { testBoardsIndependent(t, newStore(t)) })
}

func testEmptyBoard(t *testing.T, s engine.Store) {
	got, err := s.Query(context.Background(), Expert, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testAscendingOrder(t *testing.T, s engine.Store) {
	ctx := context.Background()
	require.NoError(t, s.Submit(ctx, Expert, Entry(Expert, 1, 45, "Ann")))
	require.NoError(t, s.Submit(ctx, Expert, Entry(Expert, 2, 30, "Bo")))

	got, err := s.Query(ctx, Expert, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Bo", got[0].PlayerName)
	assert.Equal(t, 30.0, got[0].Score)
	assert.Equal(t, "Ann", got[1].PlayerName)
	assert.Equal(t, 45.0, got[1].Score)
}

func testRoundTrip(t *testing.T, s engine.Store) {
	ctx := context.Background()
	want := Entry(Expert, 7, 12.75, "Zoë")
	require.NoError(t, s.Submit(ctx, Expert, want))

	noConfig := Entry(Expert, 8, 13, "NoConfig")
	noConfig.GameConfig = nil
	require.NoError(t, s.Submit(ctx, Expert, noConfig))

	got, err := s.Query(ctx, Expert, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, want.ID, got[0].ID)
	assert.Equal(t, want.GameType, got[0].GameType)
	assert.Equal(t, want.Difficulty, got[0].Difficulty)
	assert.Equal(t, want.Score, got[0].Score)
	assert.Equal(t, want.PlayerName, got[0].PlayerName)
	assert.True(t, want.Timestamp.Equal(got[0].Timestamp), "timestamp %v != %v", want.Timestamp, got[0].Timestamp)
	require.NotNil(t, got[0].GameConfig)
	assert.Equal(t, *want.GameConfig, *got[0].GameConfig)
	assert.Nil(t, got[1].GameConfig)
}

func testLimit(t *testing.T, s engine.Store) {
	ctx := context.Background()
	for i := 0; i < 30; i++ {
		require.NoError(t, s.Submit(ctx, Expert, Entry(Expert, i, float64(100-i), "p")))
	}
	got, err := s.Query(ctx, Expert, 5)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, 71.0, got[0].Score)
	assert.Equal(t, 75.0, got[4].Score)

	got, err = s.Query(ctx, Expert, 1000)
	require.NoError(t, err)
	assert.Len(t, got, 30)

	got, err = s.Query(ctx, Expert, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testRetainsBestHundred(t *testing.T, s engine.Store) {
	ctx := context.Background()
	for i := 1; i <= 101; i++ {
		require.NoError(t, s.Submit(ctx, Expert, Entry(Expert, i, float64(i), "p")))
	}
	got, err := s.Query(ctx, Expert, core.MaxEntries)
	require.NoError(t, err)
	require.Len(t, got, core.MaxEntries)
	for i, e := range got {
		assert.Equal(t, float64(i+1), e.Score)
		assert.NotEqual(t, 101.0, e.Score)
	}

	// a new best pushes the current worst out
	require.NoError(t, s.Submit(ctx, Expert, Entry(Expert, 500, 0, "best")))
	got, err = s.Query(ctx, Expert, core.MaxEntries+5)
	require.NoError(t, err)
	require.Len(t, got, core.MaxEntries)
	assert.Equal(t, "best", got[0].PlayerName)
	assert.Equal(t, 99.0, got[len(got)-1].Score)

	// a score worse than everything retained is accepted and immediately evicted
	require.NoError(t, s.Submit(ctx, Expert, Entry(Expert, 501, 999, "worst")))
	got, err = s.Query(ctx, Expert, core.MaxEntries)
	require.NoError(t, err)
	require.Len(t, got, core.MaxEntries)
	assert.Equal(t, 99.0, got[len(got)-1].Score)
}

func testRandomSubmissions(t *testing.T, s engine.Store) {
	ctx := context.Background()
	r := rand.New(rand.NewPCG(42, 7))
	var all []float64
	for i := 0; i < 160; i++ {
		score := float64(r.IntN(1000))
		all = append(all, score)
		require.NoError(t, s.Submit(ctx, Expert, Entry(Expert, i, score, "p")))

		got, err := s.Query(ctx, Expert, core.MaxEntries)
		require.NoError(t, err)
		require.LessOrEqual(t, len(got), core.MaxEntries)
		require.Len(t, got, min(i+1, core.MaxEntries))
		require.True(t, sort.SliceIsSorted(got, func(a, b int) bool { return got[a].Score < got[b].Score }),
			"board not sorted after submission %d", i)
	}

	sort.Float64s(all)
	got, err := s.Query(ctx, Expert, core.MaxEntries)
	require.NoError(t, err)
	for i, e := range got {
		assert.Equal(t, all[i], e.Score)
	}
	worstKept := got[len(got)-1].Score
	for _, evicted := range all[core.MaxEntries:] {
		assert.GreaterOrEqual(t, evicted, worstKept)
	}
}

func testTies(t *testing.T, s engine.Store) {
	ctx := context.Background()
	require.NoError(t, s.Submit(ctx, Expert, Entry(Expert, 3, 50, "third")))
	require.NoError(t, s.Submit(ctx, Expert, Entry(Expert, 1, 50, "first")))
	require.NoError(t, s.Submit(ctx, Expert, Entry(Expert, 2, 50, "second")))

	for i := 0; i < 3; i++ {
		got, err := s.Query(ctx, Expert, 10)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"first", "second", "third"}, []string{got[0].PlayerName, got[1].PlayerName, got[2].PlayerName})
	}
}

func testBoardsIndependent(t *testing.T, s engine.Store) {
	ctx := context.Background()
	for i := 1; i <= 101; i++ {
		require.NoError(t, s.Submit(ctx, Expert, Entry(Expert, i, float64(i), "expert")))
	}
	require.NoError(t, s.Submit(ctx, Beginner, Entry(Beginner, 1000, 500, "beginner")))

	got, err := s.Query(ctx, Beginner, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "beginner", got[0].PlayerName)

	got, err = s.Query(ctx, Expert, core.MaxEntries)
	require.NoError(t, err)
	assert.Len(t, got, core.MaxEntries)
	for _, e := range got {
		assert.Equal(t, Expert.Difficulty, e.Difficulty)
	}
}
