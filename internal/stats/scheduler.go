// Package stats runs the daily statistics recomputation job.
package stats

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tgarchive/viewer/internal/storage"
)

// Scheduler recomputes cached statistics once per day at Hour in Location,
// retrying a failed first run after an hour rather than failing startup.
type Scheduler struct {
	Store    storage.Adapter
	Hour     int // 0-23, local to Location
	Location *time.Location
}

// Run blocks until ctx is cancelled, triggering RefreshStatistics at each
// scheduled occurrence of Hour.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := s.nextRun(time.Now().In(s.Location))
		wait := time.Until(next)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if err := s.runOnce(ctx); err != nil {
			log.Error().Err(err).Msg("stats: scheduled recomputation failed, retrying in 1h")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Hour):
			}
			if err := s.runOnce(ctx); err != nil {
				log.Error().Err(err).Msg("stats: retry recomputation failed, resuming daily schedule")
			}
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) error {
	_, err := s.Store.RefreshStatistics(ctx)
	return err
}

// nextRun returns the next time strictly after now that falls on s.Hour.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), s.Hour, 0, 0, 0, s.Location)
	if !candidate.After(now) {
		candidate = candidate.Add(24 * time.Hour)
	}
	return candidate
}
