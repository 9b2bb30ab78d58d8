package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxEntries is the number of entries retained per leaderboard.
	MaxEntries = 100
	// DefaultLimit is the number of entries returned when the caller does not ask for a specific count.
	DefaultLimit = 50

	MinScore = 0
	MaxScore = 999

	// MaxPlayerNameLen is measured in characters, not bytes.
	MaxPlayerNameLen  = 20
	DefaultPlayerName = "Anonymous"
)

// BoardKey identifies one leaderboard partition.
type BoardKey struct {
	GameType   string `json:"gameType"`
	Difficulty string `json:"difficulty"`
}

// String returns the "{gameType}:{difficulty}" form used as the storage key.
func (k BoardKey) String() string {
	return k.GameType + ":" + k.Difficulty
}

// Validate ensures both parts are present and the serialized form is unambiguous.
func (k BoardKey) Validate() error {
	if err := validateIdentifier("gameType", k.GameType); err != nil {
		return err
	}
	return validateIdentifier("difficulty", k.Difficulty)
}

func validateIdentifier(field, v string) error {
	if v == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	if strings.Contains(v, ":") {
		return &ValidationError{Field: field, Message: "must not contain ':'"}
	}
	return nil
}

// GameConfig describes the board a score was achieved on. It is carried along
// with the entry and never interpreted.
type GameConfig struct {
	BoardWidth  int `json:"boardWidth"`
	BoardHeight int `json:"boardHeight"`
	MinesCount  int `json:"minesCount"`
}

// ScoreEntry is one leaderboard record. Entries are immutable once created.
type ScoreEntry struct {
	ID         string      `json:"id"`
	GameType   string      `json:"gameType"`
	Difficulty string      `json:"difficulty"`
	Score      float64     `json:"score"`
	PlayerName string      `json:"playerName"`
	Timestamp  time.Time   `json:"timestamp"`
	GameConfig *GameConfig `json:"gameConfig,omitempty"`
}

// Key returns the partition the entry belongs to.
func (e ScoreEntry) Key() BoardKey {
	return BoardKey{GameType: e.GameType, Difficulty: e.Difficulty}
}

// Clone returns a copy that shares no memory with the receiver.
func (e ScoreEntry) Clone() ScoreEntry {
	cp := e
	if e.GameConfig != nil {
		gc := *e.GameConfig
		cp.GameConfig = &gc
	}
	return cp
}

// Submission is a score as received from a client, before an id and timestamp are assigned.
type Submission struct {
	GameType   string
	Difficulty string
	Score      float64
	PlayerName string
	GameConfig *GameConfig
}

// Key returns the partition the submission targets.
func (s Submission) Key() BoardKey {
	return BoardKey{GameType: s.GameType, Difficulty: s.Difficulty}
}

// Validate checks the submission before it is allowed near a store.
func (s Submission) Validate() error {
	if err := s.Key().Validate(); err != nil {
		return err
	}
	return ValidateScore(s.Score)
}

// ValidateScore ensures score is a finite number within [MinScore, MaxScore].
func ValidateScore(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return &ValidationError{Field: "score", Message: "must be a finite number"}
	}
	if score < MinScore || score > MaxScore {
		return &ValidationError{Field: "score", Message: fmt.Sprintf("must be between %d and %d", MinScore, MaxScore)}
	}
	return nil
}

// NormalizePlayerName trims the name, substitutes DefaultPlayerName when nothing
// is left, and truncates to MaxPlayerNameLen characters.
func NormalizePlayerName(name string) string {
	s := strings.TrimSpace(name)
	if s == "" {
		s = DefaultPlayerName
	}
	if utf8.RuneCountInString(s) > MaxPlayerNameLen {
		s = string([]rune(s)[:MaxPlayerNameLen])
	}
	return s
}

// NewEntry builds the stored record for a validated submission.
func NewEntry(s Submission, id string, now time.Time) ScoreEntry {
	e := ScoreEntry{
		ID:         id,
		GameType:   s.GameType,
		Difficulty: s.Difficulty,
		Score:      s.Score,
		PlayerName: NormalizePlayerName(s.PlayerName),
		Timestamp:  now.UTC(),
	}
	if s.GameConfig != nil {
		gc := *s.GameConfig
		e.GameConfig = &gc
	}
	return e
}

// ClampLimit maps a requested page size onto [1, MaxEntries], using DefaultLimit
// for anything non-positive.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxEntries {
		return MaxEntries
	}
	return limit
}

// ValidationError reports a malformed or missing request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + " " + e.Message
}

// ErrBackingUnavailable marks failures of the underlying store.
var ErrBackingUnavailable = errors.New("leaderboard backing unavailable")

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
