package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"scorekit/core"
)

// ScoreSubmission is the payload of SubmitScore.
type ScoreSubmission struct {
	GameType   string           `json:"gameType"`
	Difficulty string           `json:"difficulty"`
	Score      float64          `json:"score"`
	PlayerName string           `json:"playerName,omitempty"`
	GameConfig *core.GameConfig `json:"gameConfig,omitempty"`
}

// Leaderboard is the response of GetLeaderboard.
type Leaderboard struct {
	Entries    []core.ScoreEntry `json:"leaderboard"`
	Game       string            `json:"game"`
	Difficulty string            `json:"difficulty"`
	Total      int               `json:"total"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string         `json:"status"`
	Checks map[string]any `json:"checks"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Code       string `json:"code"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed: status %d: %s", e.StatusCode, e.Message)
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrMissingBoard is returned when gameType or difficulty is empty.
var ErrMissingBoard = errors.New("game type and difficulty are required")
