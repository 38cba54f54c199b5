package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var madrid = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		return time.FixedZone("CET", 3600)
	}
	return loc
}()

func TestJobLast_Daily(t *testing.T) {
	j := Job{Hour: 18}

	at := j.Last(time.Date(2025, 3, 14, 18, 0, 0, 0, madrid))
	assert.Equal(t, time.Date(2025, 3, 14, 18, 0, 0, 0, madrid), at)

	at = j.Last(time.Date(2025, 3, 14, 17, 59, 0, 0, madrid))
	assert.Equal(t, time.Date(2025, 3, 13, 18, 0, 0, 0, madrid), at)
}

func TestJobLast_Monthly(t *testing.T) {
	j := Job{DayOfMonth: 4, Hour: 10}

	at := j.Last(time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC), at)

	at = j.Last(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 12, 4, 10, 0, 0, 0, time.UTC), at)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestScheduler(jobs []Job, c *clock) *Scheduler {
	s := New(jobs, time.Minute, time.UTC, zerolog.Nop())
	s.now = c.now
	s.prev = c.t
	return s
}

func TestTick_RunsOncePerInstant(t *testing.T) {
	var runs []time.Time
	job := Job{Name: "daily", Hour: 9, Run: func(ctx context.Context, at time.Time) error {
		runs = append(runs, at)
		return nil
	}}
	c := &clock{t: time.Date(2025, 3, 14, 8, 59, 30, 0, time.UTC)}
	s := newTestScheduler([]Job{job}, c)

	s.Tick(context.Background())
	assert.Empty(t, runs)

	c.t = c.t.Add(time.Minute)
	s.Tick(context.Background())
	require.Len(t, runs, 1)
	assert.Equal(t, time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC), runs[0])

	c.t = c.t.Add(time.Minute)
	s.Tick(context.Background())
	assert.Len(t, runs, 1)

	c.t = time.Date(2025, 3, 15, 9, 0, 10, 0, time.UTC)
	s.Tick(context.Background())
	assert.Len(t, runs, 2)
}

func TestTick_NoCatchUpBeforeStart(t *testing.T) {
	called := false
	job := Job{Name: "daily", Hour: 9, Run: func(ctx context.Context, at time.Time) error {
		called = true
		return nil
	}}
	c := &clock{t: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)}
	s := newTestScheduler([]Job{job}, c)

	c.t = c.t.Add(time.Minute)
	s.Tick(context.Background())
	assert.False(t, called)
}

func TestTick_JobErrorDoesNotStopOthers(t *testing.T) {
	var ran []string
	jobs := []Job{
		{Name: "a", Hour: 9, Run: func(ctx context.Context, at time.Time) error {
			ran = append(ran, "a")
			return errors.New("boom")
		}},
		{Name: "b", Hour: 9, Run: func(ctx context.Context, at time.Time) error {
			ran = append(ran, "b")
			return nil
		}},
	}
	c := &clock{t: time.Date(2025, 3, 14, 8, 59, 30, 0, time.UTC)}
	s := newTestScheduler(jobs, c)

	c.t = c.t.Add(time.Minute)
	s.Tick(context.Background())
	assert.Equal(t, []string{"a", "b"}, ran)
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	s := New(nil, 10*time.Millisecond, time.UTC, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
