package stats

import (
	"testing"
	"time"
)

func TestNextRunLaterTodayIfHourNotYetReached(t *testing.T) {
	loc := time.UTC
	s := &Scheduler{Hour: 15, Location: loc}
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, loc)

	got := s.nextRun(now)
	want := time.Date(2026, 7, 30, 15, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("nextRun = %v, want %v", got, want)
	}
}

func TestNextRunTomorrowIfHourAlreadyPassed(t *testing.T) {
	loc := time.UTC
	s := &Scheduler{Hour: 3, Location: loc}
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, loc)

	got := s.nextRun(now)
	want := time.Date(2026, 7, 31, 3, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("nextRun = %v, want %v", got, want)
	}
}
