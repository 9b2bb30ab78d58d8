package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "scorekit/adapters/memory"
	"scorekit/analytics"
	"scorekit/core"
	"scorekit/engine"
)

func newTestService(t *testing.T, store engine.Store) *engine.ScoreService {
	t.Helper()
	if store == nil {
		store = mem.New()
	}
	svc := engine.NewScoreService(store, engine.NewEventBus(engine.DispatchSync), engine.DefaultRuleEngine())
	t.Cleanup(svc.Close)
	return svc
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T, store engine.Store) http.Handler {
	return NewMux(newTestService(t, store), nil, Options{PathPrefix: "/api", Logger: quietLogger()})
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func submitBody(score any, name string) string {
	b, _ := json.Marshal(map[string]any{
		"gameType":   "minesweeper",
		"difficulty": "expert",
		"score":      score,
		"playerName": name,
		"gameConfig": map[string]int{"boardWidth": 30, "boardHeight": 16, "minesCount": 99},
	})
	return string(b)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var e apiError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func TestSubmitSuccess(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := do(t, h, http.MethodPost, "/api/leaderboard/submit", submitBody(45, "  Ann  "))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Entry.ID)
	assert.False(t, resp.Entry.Timestamp.IsZero())
	assert.Equal(t, "Ann", resp.Entry.PlayerName)
	require.NotNil(t, resp.Entry.GameConfig)
	assert.Equal(t, 99, resp.Entry.GameConfig.MinesCount)
}

func TestSubmitThenGet(t *testing.T) {
	h := newTestHandler(t, nil)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/leaderboard/submit", submitBody(45, "Ann")).Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/leaderboard/submit", submitBody(30, "Bo")).Code)

	rec := do(t, h, http.MethodGet, "/api/leaderboard/get?game=minesweeper&difficulty=expert&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LeaderboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "minesweeper", resp.Game)
	assert.Equal(t, "expert", resp.Difficulty)
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Leaderboard, 2)
	assert.Equal(t, "Bo", resp.Leaderboard[0].PlayerName)
	assert.Equal(t, 30.0, resp.Leaderboard[0].Score)
	assert.Equal(t, "Ann", resp.Leaderboard[1].PlayerName)
}

func TestSubmitValidation(t *testing.T) {
	h := newTestHandler(t, nil)
	cases := map[string]string{
		"out of range":    submitBody(1500, "Ann"),
		"negative":        submitBody(-1, "Ann"),
		"score as string": submitBody("45", "Ann"),
		"missing score":   `{"gameType":"minesweeper","difficulty":"expert"}`,
		"missing game":    `{"difficulty":"expert","score":10}`,
		"colon in key":    `{"gameType":"mine:sweeper","difficulty":"expert","score":10}`,
		"malformed json":  `{"gameType":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/leaderboard/submit", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			e := decodeError(t, rec)
			assert.NotEmpty(t, e.Error)
			assert.NotEmpty(t, e.Code)
		})
	}

	rec := do(t, h, http.MethodGet, "/api/leaderboard/get?game=minesweeper&difficulty=expert", "")
	var resp LeaderboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Total, "rejected submissions must not reach the store")
}

func TestGetMissingParams(t *testing.T) {
	h := newTestHandler(t, nil)
	rec := do(t, h, http.MethodGet, "/api/leaderboard/get?game=minesweeper", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing game or difficulty parameter", decodeError(t, rec).Error)
}

func TestGetUnknownBoardIsEmpty(t *testing.T) {
	h := newTestHandler(t, nil)
	rec := do(t, h, http.MethodGet, "/api/leaderboard/get?game=minesweeper&difficulty=custom", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"leaderboard":[]`)
}

func TestGetLimitClamping(t *testing.T) {
	svc := newTestService(t, nil)
	for i := 1; i <= 101; i++ {
		_, err := svc.Submit(context.Background(), core.Submission{
			GameType: "minesweeper", Difficulty: "expert", Score: float64(i), PlayerName: fmt.Sprintf("p%d", i),
		})
		require.NoError(t, err)
	}
	h := NewMux(svc, nil, Options{PathPrefix: "/api", Logger: quietLogger()})

	cases := map[string]int{
		"":            core.DefaultLimit,
		"&limit=0":    core.DefaultLimit,
		"&limit=-3":   core.DefaultLimit,
		"&limit=x":    core.DefaultLimit,
		"&limit=7":    7,
		"&limit=7abc": 7,
		"&limit=+12":  12,
		"&limit=500":  core.MaxEntries,
	}
	for q, want := range cases {
		rec := do(t, h, http.MethodGet, "/api/leaderboard/get?game=minesweeper&difficulty=expert"+q, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var resp LeaderboardResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, want, resp.Total, "query %q", q)
	}
}

func TestLeadingInt(t *testing.T) {
	cases := map[string]int{"": 0, "x": 0, "7": 7, "7abc": 7, " 12 ": 12, "-3": -3, "+4z": 4, "-": 0, "1.9": 1}
	for in, want := range cases {
		assert.Equal(t, want, leadingInt(in), "input %q", in)
	}
}

func TestRankAndQualifies(t *testing.T) {
	h := newTestHandler(t, nil)
	do(t, h, http.MethodPost, "/api/leaderboard/submit", submitBody(45, "Ann"))
	do(t, h, http.MethodPost, "/api/leaderboard/submit", submitBody(30, "Bo"))

	rec := do(t, h, http.MethodGet, "/api/leaderboard/rank?game=minesweeper&difficulty=expert&player=Ann", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rank RankResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rank))
	assert.True(t, rank.Found)
	assert.Equal(t, 2, rank.Rank)

	rec = do(t, h, http.MethodGet, "/api/leaderboard/rank?game=minesweeper&difficulty=expert", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/leaderboard/qualifies?game=minesweeper&difficulty=expert&score=50&top=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var q QualifiesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.False(t, q.Qualifies)
	assert.Equal(t, 2, q.Top)

	rec = do(t, h, http.MethodGet, "/api/leaderboard/qualifies?game=minesweeper&difficulty=expert&score=10", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.True(t, q.Qualifies)
	assert.Equal(t, core.DefaultLimit, q.Top)

	rec = do(t, h, http.MethodGet, "/api/leaderboard/qualifies?game=minesweeper&difficulty=expert&score=10&top=1x", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, 1, q.Top)

	rec = do(t, h, http.MethodGet, "/api/leaderboard/qualifies?game=minesweeper&difficulty=expert&score=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/leaderboard/qualifies?game=minesweeper&difficulty=expert&score=1000", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	stats := analytics.NewBoardStats()
	svc := newTestService(t, nil)
	svc.Subscribe(engine.AllEvents, func(_ context.Context, e core.Event) { stats.OnEvent(e) })
	h := NewMux(svc, nil, Options{PathPrefix: "/api", Stats: stats, Logger: quietLogger()})

	do(t, h, http.MethodPost, "/api/leaderboard/submit", submitBody(45, "Ann"))
	do(t, h, http.MethodPost, "/api/leaderboard/submit", submitBody(30, "Bo"))

	rec := do(t, h, http.MethodGet, "/api/leaderboard/stats?game=minesweeper", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Boards, 1)
	assert.Equal(t, int64(2), resp.Boards[0].Submissions)
	assert.Equal(t, int64(2), resp.Boards[0].NewRecords)
	assert.Equal(t, "Bo", resp.Boards[0].BestPlayer)

	rec = do(t, h, http.MethodGet, "/api/leaderboard/stats?game=minesweeper&difficulty=expert", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = StatsResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Boards, 1)
	assert.Equal(t, "expert", resp.Boards[0].Difficulty)

	rec = do(t, h, http.MethodGet, "/api/leaderboard/stats?game=minesweeper&difficulty=beginner", "")
	resp = StatsResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Boards)

	// not routed without stats
	rec = do(t, newTestHandler(t, nil), http.MethodGet, "/api/leaderboard/stats", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type brokenStore struct{}

func (brokenStore) Submit(context.Context, core.BoardKey, core.ScoreEntry) error {
	return errors.New("dial tcp: connection refused")
}

func (brokenStore) Query(context.Context, core.BoardKey, int) ([]core.ScoreEntry, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestBackingFailureIs500(t *testing.T) {
	h := newTestHandler(t, brokenStore{})

	rec := do(t, h, http.MethodPost, "/api/leaderboard/submit", submitBody(45, "Ann"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, "backing_unavailable", e.Code)
	assert.NotContains(t, e.Error, "connection refused")

	rec = do(t, h, http.MethodGet, "/api/leaderboard/get?game=minesweeper&difficulty=expert", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unhealthy")
}

func TestHealthz(t *testing.T) {
	rec := do(t, newTestHandler(t, nil), http.MethodGet, "/api/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestMethodNotAllowedAndNotFound(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := do(t, h, http.MethodGet, "/api/leaderboard/submit", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", decodeError(t, rec).Error)

	rec = do(t, h, http.MethodPost, "/api/leaderboard/get?game=a&difficulty=b", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Code)
}

func TestCORSPreflight(t *testing.T) {
	h := NewMux(newTestService(t, nil), nil, Options{PathPrefix: "/api", AllowCORSOrigin: "*", Logger: quietLogger()})

	rec := do(t, h, http.MethodOptions, "/api/leaderboard/submit", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")

	rec = do(t, h, http.MethodGet, "/api/healthz", "")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSubmitBodyTooLarge(t *testing.T) {
	h := NewMux(newTestService(t, nil), nil, Options{PathPrefix: "/api", MaxBodyBytes: 64, Logger: quietLogger()})
	body := `{"gameType":"minesweeper","difficulty":"expert","score":10,"playerName":"` + strings.Repeat("x", 200) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/leaderboard/submit", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
