package memory

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorekit/adapters/storetest"
	"scorekit/core"
	"scorekit/engine"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) engine.Store { return New() })
}

func TestMemoryStoreInstancesAreIsolated(t *testing.T) {
	a, b := New(), New()
	ctx := context.Background()
	require.NoError(t, a.Submit(ctx, storetest.Expert, storetest.Entry(storetest.Expert, 1, 10, "Ann")))

	got, err := b.Query(ctx, storetest.Expert, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStoreQueryReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Submit(ctx, storetest.Expert, storetest.Entry(storetest.Expert, 1, 10, "Ann")))

	got, err := s.Query(ctx, storetest.Expert, 1)
	require.NoError(t, err)
	got[0].PlayerName = "mutated"
	got[0].GameConfig.MinesCount = 0

	again, err := s.Query(ctx, storetest.Expert, 1)
	require.NoError(t, err)
	assert.Equal(t, "Ann", again[0].PlayerName)
	assert.Equal(t, 99, again[0].GameConfig.MinesCount)
}

func TestMemoryStoreConcurrentSubmits(t *testing.T) {
	s := New()
	ctx := context.Background()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				n := w*1000 + i
				_ = s.Submit(ctx, storetest.Expert, storetest.Entry(storetest.Expert, n, float64(n%997), "p"))
			}
		}(w)
	}
	wg.Wait()

	got, err := s.Query(ctx, storetest.Expert, core.MaxEntries)
	require.NoError(t, err)
	assert.Len(t, got, core.MaxEntries)
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Submit(ctx, storetest.Expert, storetest.Entry(storetest.Expert, 1, 10, "Ann")))
}

func TestMemoryStoreLogsEvictions(t *testing.T) {
	var buf bytes.Buffer
	s := New(WithLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	ctx := context.Background()
	for i := 0; i < core.MaxEntries; i++ {
		require.NoError(t, s.Submit(ctx, storetest.Expert, storetest.Entry(storetest.Expert, i, float64(i), "p")))
	}
	assert.NotContains(t, buf.String(), "evicted entries")

	require.NoError(t, s.Submit(ctx, storetest.Expert, storetest.Entry(storetest.Expert, 500, 999, "late")))
	assert.Contains(t, buf.String(), "evicted entries")
	assert.Contains(t, buf.String(), "board=minesweeper:expert")
	assert.Contains(t, buf.String(), "count=1")
}
