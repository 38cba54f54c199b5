// Package scheduler runs the daily and monthly background jobs.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"bandspace/internal/metrics"
)

// Job runs once per scheduled instant: every day at Hour:Minute, or only on
// DayOfMonth when it is set.
type Job struct {
	Name       string
	Hour       int
	Minute     int
	DayOfMonth int
	Run        func(ctx context.Context, at time.Time) error
}

// Last returns the most recent scheduled instant at or before now, in now's
// location.
func (j Job) Last(now time.Time) time.Time {
	y, m, d := now.Date()
	if j.DayOfMonth > 0 {
		at := time.Date(y, m, j.DayOfMonth, j.Hour, j.Minute, 0, 0, now.Location())
		if at.After(now) {
			at = time.Date(y, m-1, j.DayOfMonth, j.Hour, j.Minute, 0, 0, now.Location())
		}
		return at
	}
	at := time.Date(y, m, d, j.Hour, j.Minute, 0, 0, now.Location())
	if at.After(now) {
		at = at.AddDate(0, 0, -1)
	}
	return at
}

type Scheduler struct {
	jobs     []Job
	interval time.Duration
	loc      *time.Location
	log      zerolog.Logger

	now     func() time.Time
	lastRun map[string]time.Time
	prev    time.Time
}

func New(jobs []Job, interval time.Duration, loc *time.Location, log zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		jobs:     jobs,
		interval: interval,
		loc:      loc,
		log:      log,
		now:      time.Now,
		lastRun:  map[string]time.Time{},
	}
}

// Start ticks until ctx is done. Instants that passed before Start are not
// caught up.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.prev = s.now().In(s.loc)
	s.log.Info().Dur("interval", s.interval).Str("tz", s.loc.String()).Int("jobs", len(s.jobs)).Msg("scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs every job whose scheduled instant fell in (previous tick, now].
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now().In(s.loc)
	prev := s.prev
	if prev.IsZero() {
		prev = now.Add(-s.interval)
	}
	s.prev = now

	for _, j := range s.jobs {
		at := j.Last(now)
		if !at.After(prev) || !at.After(s.lastRun[j.Name]) {
			continue
		}
		s.lastRun[j.Name] = at
		s.run(ctx, j, at)
	}
}

func (s *Scheduler) run(ctx context.Context, j Job, at time.Time) {
	start := time.Now()
	err := j.Run(ctx, at)
	metrics.SchedulerRun(j.Name, err)

	ev := s.log.Info()
	if err != nil {
		ev = s.log.Error().Err(err)
	}
	ev.Str("job", j.Name).Time("scheduled_at", at).Dur("took", time.Since(start)).Msg("scheduler job")
}
