package core

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"
)

func TestNormalizePlayerName(t *testing.T) {
	cases := map[string]string{
		"":                          DefaultPlayerName,
		"   ":                       DefaultPlayerName,
		"  Ann ":                    "Ann",
		strings.Repeat("abcde", 5):  strings.Repeat("abcde", 4),
		"ÅÅÅÅÅÅÅÅÅÅÅÅÅÅÅÅÅÅÅÅÅÅÅÅÅ": "ÅÅÅÅÅÅÅÅÅÅÅÅÅÅÅÅÅÅÅÅ",
	}
	for in, want := range cases {
		if got := NormalizePlayerName(in); got != want {
			t.Fatalf("NormalizePlayerName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateScore(t *testing.T) {
	for _, ok := range []float64{0, 45, 12.5, 999} {
		if err := ValidateScore(ok); err != nil {
			t.Fatalf("score %v: unexpected err %v", ok, err)
		}
	}
	for _, bad := range []float64{-1, 999.01, 1500, math.NaN(), math.Inf(1)} {
		err := ValidateScore(bad)
		if err == nil || !IsValidation(err) {
			t.Fatalf("score %v: expected validation error, got %v", bad, err)
		}
	}
}

func TestSubmissionValidate(t *testing.T) {
	good := Submission{GameType: "minesweeper", Difficulty: "expert", Score: 30}
	if err := good.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := (Submission{Difficulty: "expert", Score: 1}).Validate(); err == nil {
		t.Fatal("expected missing gameType error")
	}
	if err := (Submission{GameType: "minesweeper", Score: 1}).Validate(); err == nil {
		t.Fatal("expected missing difficulty error")
	}
	if err := (Submission{GameType: "mine:sweeper", Difficulty: "expert", Score: 1}).Validate(); err == nil {
		t.Fatal("expected separator error")
	}
}

func TestClampLimit(t *testing.T) {
	cases := map[int]int{-5: DefaultLimit, 0: DefaultLimit, 1: 1, 50: 50, 100: 100, 101: 100, 5000: 100}
	for in, want := range cases {
		if got := ClampLimit(in); got != want {
			t.Fatalf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestBoardKeyString(t *testing.T) {
	if got := (BoardKey{GameType: "minesweeper", Difficulty: "expert"}).String(); got != "minesweeper:expert" {
		t.Fatalf("got %q", got)
	}
}

func TestNewEntryCopiesGameConfig(t *testing.T) {
	gc := &GameConfig{BoardWidth: 30, BoardHeight: 16, MinesCount: 99}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	e := NewEntry(Submission{GameType: "minesweeper", Difficulty: "expert", Score: 45, PlayerName: " Ann ", GameConfig: gc}, "id-1", now)
	gc.MinesCount = 1
	if e.GameConfig.MinesCount != 99 {
		t.Fatal("entry must not alias the submission's game config")
	}
	if e.PlayerName != "Ann" || e.ID != "id-1" || e.Timestamp.Location() != time.UTC {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestNewRecordRule(t *testing.T) {
	first := ScoreEntry{ID: "a", GameType: "g", Difficulty: "d", Score: 10, PlayerName: "Bo"}
	second := ScoreEntry{ID: "b", GameType: "g", Difficulty: "d", Score: 20, PlayerName: "Ann"}

	evs := NewRecordRule{}.Evaluate(context.Background(), []ScoreEntry{first, second}, NewScoreSubmitted(first))
	if len(evs) != 1 || evs[0].Type != EventNewRecord || evs[0].Metadata["previousScore"] != float64(20) {
		t.Fatalf("unexpected events: %#v", evs)
	}
	if evs := (NewRecordRule{}).Evaluate(context.Background(), []ScoreEntry{first, second}, NewScoreSubmitted(second)); len(evs) != 0 {
		t.Fatalf("expected no events, got %#v", evs)
	}
}
