package engine

import "time"

// SetClock replaces the time source and id generator used for new entries.
func (s *ScoreService) SetClock(now func() time.Time, newID func() string) {
	s.now = now
	s.newID = newID
}
