package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	wsadapter "scorekit/adapters/websocket"
	"scorekit/analytics"
	"scorekit/core"
	"scorekit/engine"
	"scorekit/realtime"
)

const defaultMaxBodyBytes = 16 << 10

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// Logger receives request failures. Defaults to slog.Default().
	Logger *slog.Logger
	// Stats, if set, is served at {prefix}/leaderboard/stats.
	Stats *analytics.BoardStats
	// MaxBodyBytes caps submit request bodies.
	MaxBodyBytes int64
}

// SubmitRequest is the body of a score submission.
type SubmitRequest struct {
	GameType   string           `json:"gameType"`
	Difficulty string           `json:"difficulty"`
	Score      *float64         `json:"score"`
	PlayerName string           `json:"playerName"`
	GameConfig *core.GameConfig `json:"gameConfig,omitempty"`
}

type SubmitResponse struct {
	Success bool            `json:"success"`
	Entry   core.ScoreEntry `json:"entry"`
}

type LeaderboardResponse struct {
	Leaderboard []core.ScoreEntry `json:"leaderboard"`
	Game        string            `json:"game"`
	Difficulty  string            `json:"difficulty"`
	Total       int               `json:"total"`
}

type RankResponse struct {
	Rank       int    `json:"rank,omitempty"`
	Found      bool   `json:"found"`
	Game       string `json:"game"`
	Difficulty string `json:"difficulty"`
	PlayerName string `json:"playerName"`
}

type QualifiesResponse struct {
	Qualifies  bool    `json:"qualifies"`
	Game       string  `json:"game"`
	Difficulty string  `json:"difficulty"`
	Score      float64 `json:"score"`
	Top        int     `json:"top"`
}

type StatsResponse struct {
	Boards []analytics.BoardSummary `json:"boards"`
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type handler struct {
	svc    *engine.ScoreService
	opts   Options
	logger *slog.Logger
}

// NewMux builds an http.Handler exposing the leaderboard REST API and WebSocket stream.
// Routes:
//   - POST {prefix}/leaderboard/submit
//   - GET  {prefix}/leaderboard/get?game=&difficulty=&limit=
//   - GET  {prefix}/leaderboard/rank?game=&difficulty=&player=
//   - GET  {prefix}/leaderboard/qualifies?game=&difficulty=&score=&top=
//   - GET  {prefix}/leaderboard/stats
//   - GET  {prefix}/healthz
//   - WS   {prefix}/ws
func NewMux(svc *engine.ScoreService, hub *realtime.Hub, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	h := &handler{svc: svc, opts: opts, logger: opts.Logger}
	mux := http.NewServeMux()

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/healthz"), method(http.MethodGet, h.healthCheck))
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/leaderboard/submit"), method(http.MethodPost, h.submit))
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/leaderboard/get"), method(http.MethodGet, h.leaderboard))
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/leaderboard/rank"), method(http.MethodGet, h.rank))
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/leaderboard/qualifies"), method(http.MethodGet, h.qualifies))
	if opts.Stats != nil {
		mux.HandleFunc(withPrefix(opts.PathPrefix, "/leaderboard/stats"), method(http.MethodGet, h.stats))
	}

	// WebSocket events
	if hub != nil {
		mux.Handle(withPrefix(opts.PathPrefix, "/ws"), wsadapter.Handler(hub, opts.Logger))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})

	var root http.Handler = mux
	if opts.AllowCORSOrigin != "" {
		root = withCORS(root, opts.AllowCORSOrigin)
	}
	return root
}

func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Missing or invalid required fields")
		return
	}
	if req.Score == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "score is required")
		return
	}
	entry, err := h.svc.Submit(r.Context(), core.Submission{
		GameType:   req.GameType,
		Difficulty: req.Difficulty,
		Score:      *req.Score,
		PlayerName: req.PlayerName,
		GameConfig: req.GameConfig,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("score submitted",
		"board", entry.Key().String(), "id", entry.ID, "score", entry.Score, "player", entry.PlayerName)
	writeJSON(w, http.StatusOK, SubmitResponse{Success: true, Entry: entry})
}

func (h *handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	key, ok := boardFromQuery(w, r)
	if !ok {
		return
	}
	limit := leadingInt(r.URL.Query().Get("limit"))
	entries, err := h.svc.Leaderboard(r.Context(), key, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("leaderboard read", "board", key.String(), "count", len(entries))
	writeJSON(w, http.StatusOK, LeaderboardResponse{
		Leaderboard: entries,
		Game:        key.GameType,
		Difficulty:  key.Difficulty,
		Total:       len(entries),
	})
}

func (h *handler) rank(w http.ResponseWriter, r *http.Request) {
	key, ok := boardFromQuery(w, r)
	if !ok {
		return
	}
	player := r.URL.Query().Get("player")
	if strings.TrimSpace(player) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Missing player parameter")
		return
	}
	rank, found, err := h.svc.Rank(r.Context(), key, player)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RankResponse{
		Rank:       rank,
		Found:      found,
		Game:       key.GameType,
		Difficulty: key.Difficulty,
		PlayerName: core.NormalizePlayerName(player),
	})
}

func (h *handler) qualifies(w http.ResponseWriter, r *http.Request) {
	key, ok := boardFromQuery(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	score, err := strconv.ParseFloat(q.Get("score"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "score must be a number")
		return
	}
	top := core.ClampLimit(leadingInt(q.Get("top")))
	qualifies, err := h.svc.Qualifies(r.Context(), key, score, top)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, QualifiesResponse{
		Qualifies:  qualifies,
		Game:       key.GameType,
		Difficulty: key.Difficulty,
		Score:      score,
		Top:        top,
	})
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	game, difficulty := q.Get("game"), q.Get("difficulty")
	if game != "" && difficulty != "" {
		boards := []analytics.BoardSummary{}
		if b, ok := h.opts.Stats.Board(core.BoardKey{GameType: game, Difficulty: difficulty}); ok {
			boards = append(boards, b)
		}
		writeJSON(w, http.StatusOK, StatsResponse{Boards: boards})
		return
	}
	boards := h.opts.Stats.Snapshot()
	if game != "" || difficulty != "" {
		filtered := boards[:0]
		for _, b := range boards {
			if (game == "" || b.GameType == game) && (difficulty == "" || b.Difficulty == difficulty) {
				filtered = append(filtered, b)
			}
		}
		boards = filtered
	}
	writeJSON(w, http.StatusOK, StatsResponse{Boards: boards})
}

// healthCheck verifies the store answers reads.
func (h *handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{"storage": "ok"},
	}
	code := http.StatusOK
	if err := h.svc.Ping(r.Context()); err != nil {
		h.logger.Error("health check failed", "error", err)
		code = http.StatusServiceUnavailable
		status["status"] = "unhealthy"
		status["checks"] = map[string]any{"storage": "failed"}
	}
	writeJSON(w, code, status)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case core.IsValidation(err):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, core.ErrBackingUnavailable):
		h.logger.Error("store operation failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "backing_unavailable", "Database operation failed")
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "Internal server error")
	}
}

// boardFromQuery reads game and difficulty, writing a 400 when either is missing.
func boardFromQuery(w http.ResponseWriter, r *http.Request) (core.BoardKey, bool) {
	q := r.URL.Query()
	key := core.BoardKey{GameType: q.Get("game"), Difficulty: q.Get("difficulty")}
	if key.GameType == "" || key.Difficulty == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Missing game or difficulty parameter")
		return key, false
	}
	if err := key.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return key, false
	}
	return key, true
}

// leadingInt parses an optional sign and the leading digits of s, so "7abc"
// reads as 7. Anything without leading digits reads as 0.
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

func method(m string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != m {
			w.Header().Set("Allow", m+", "+http.MethodOptions)
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
			return
		}
		next(w, r)
	}
}

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, apiError{Error: msg, Code: code})
}

// withCORS wraps a handler with a minimal CORS policy.
func withCORS(next http.Handler, origin string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
