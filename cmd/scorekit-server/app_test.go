package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorekit/adapters/sqlx"
	"scorekit/config"
	"scorekit/core"
)

func testEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SCOREKIT_CONFIG_FILE", "")
	t.Setenv("SCOREKIT_PROFILE", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SCOREKIT_SERVER_ADDR", "127.0.0.1:0")
	t.Setenv("SCOREKIT_LOG_OUTPUT", "stderr")
	t.Setenv("SCOREKIT_LOG_LEVEL", "error")
	t.Setenv("SCOREKIT_REALTIME_DISPATCH_MODE", "sync")
}

func TestBuildAppServesLeaderboard(t *testing.T) {
	testEnv(t)

	app, cleanup, err := BuildApp(context.Background())
	require.NoError(t, err)
	defer cleanup()

	body := `{"gameType":"minesweeper","difficulty":"expert","score":45,"playerName":"Ann"}`
	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/leaderboard/submit", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leaderboard/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"submissions":1`)

	rec = httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildAppAutoSelectsRedis(t *testing.T) {
	testEnv(t)
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())

	app, cleanup, err := BuildApp(context.Background())
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, config.AdapterRedis, app.Config.Storage.ResolvedAdapter())

	_, err = app.Service.Submit(context.Background(), core.Submission{
		GameType: "minesweeper", Difficulty: "expert", Score: 12, PlayerName: "Bo",
	})
	require.NoError(t, err)
	assert.True(t, mr.Exists("minesweeper:expert"))
}

func TestBuildAppFailsOnUnreachableRedis(t *testing.T) {
	testEnv(t)
	t.Setenv("SCOREKIT_STORAGE_ADAPTER", "redis")
	t.Setenv("SCOREKIT_REDIS_ADDR", "127.0.0.1:1")
	t.Setenv("SCOREKIT_REDIS_DIAL_TIMEOUT", "200ms")

	_, _, err := BuildApp(context.Background())
	assert.Error(t, err)
}

func TestSetupStorageAdapters(t *testing.T) {
	cfg := config.DefaultConfig()

	cfg.Storage.Adapter = config.AdapterMemory
	s, closer, err := setupStorage(cfg)
	require.NoError(t, err)
	assert.NotNil(t, s)
	assert.Nil(t, closer)

	cfg.Storage.Adapter = config.AdapterFile
	cfg.Storage.File.Path = filepath.Join(t.TempDir(), "boards.json")
	s, _, err = setupStorage(cfg)
	require.NoError(t, err)
	assert.NotNil(t, s)

	cfg.Storage.Adapter = config.AdapterSQL
	cfg.Storage.SQL = sqlx.DefaultConfig(sqlx.DriverSQLite)
	cfg.Storage.SQL.DSN = filepath.Join(t.TempDir(), "scores.db")
	s, closer, err = setupStorage(cfg)
	require.NoError(t, err)
	require.NotNil(t, closer)
	defer func() { _ = closer() }()
	got, err := s.Query(context.Background(), core.BoardKey{GameType: "minesweeper", Difficulty: "expert"}, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	cfg.Storage.Adapter = "mongo"
	_, _, err = setupStorage(cfg)
	assert.Error(t, err)
}

func TestAppRunStopsOnCancel(t *testing.T) {
	testEnv(t)
	app, cleanup, err := BuildApp(context.Background())
	require.NoError(t, err)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
