package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pfrederiksen/permit-watch/internal/clock"
	"github.com/pfrederiksen/permit-watch/internal/logger"
	"github.com/pfrederiksen/permit-watch/internal/runstate"
)

const (
	DefaultTickSleep = 10 * time.Second
	MinInterval      = time.Second
)

var (
	// ErrIntervalTooShort is returned for intervals below MinInterval
	ErrIntervalTooShort = errors.New("interval must be at least 1s")
	// ErrInvalidTimeOfDay is returned when a daily time is not HH:MM
	ErrInvalidTimeOfDay = errors.New("invalid time of day")
)

// JobFunc is the work done by a job. A returned error is logged and the loop continues.
type JobFunc func(ctx context.Context) error

type job struct {
	name     string
	fn       JobFunc
	interval time.Duration // zero for daily jobs
	hour     int
	minute   int
	next     time.Time
	runs     int
}

func (j *job) daily() bool { return j.interval == 0 }

// reschedule computes the next run from when the last run finished
func (j *job) reschedule(finishedAt time.Time) {
	if j.daily() {
		j.next = nextDaily(finishedAt, j.hour, j.minute)
		return
	}
	j.next = finishedAt.Add(j.interval)
}

// Scheduler holds registered jobs and drives them until success or cancellation
type Scheduler struct {
	state     *runstate.RunState
	clock     clock.Clock
	tickSleep time.Duration
	jobs      []*job
	log       *logger.Logger
}

// New creates a Scheduler that stops once state reports success
func New(state *runstate.RunState) *Scheduler {
	return &Scheduler{
		state:     state,
		clock:     clock.Real{},
		tickSleep: DefaultTickSleep,
		log:       logger.Default(),
	}
}

// SetClock replaces the clock. Call before registering jobs.
func (s *Scheduler) SetClock(c clock.Clock) {
	s.clock = c
}

// SetLogger replaces the logger
func (s *Scheduler) SetLogger(l *logger.Logger) {
	s.log = l
}

// SetTickSleep sets the pause between passes of the loop
func (s *Scheduler) SetTickSleep(d time.Duration) error {
	if d < MinInterval {
		return fmt.Errorf("%w: tick sleep %s", ErrIntervalTooShort, d)
	}
	s.tickSleep = d
	return nil
}

// Every registers fn to run every interval, first one interval from now
func (s *Scheduler) Every(interval time.Duration, name string, fn JobFunc) error {
	if interval < MinInterval {
		return fmt.Errorf("%w: %s got %s", ErrIntervalTooShort, name, interval)
	}
	s.jobs = append(s.jobs, &job{
		name:     name,
		fn:       fn,
		interval: interval,
		next:     s.clock.Now().Add(interval),
	})
	return nil
}

// DailyAt registers fn to run once a day at the local time hhmm ("HH:MM")
func (s *Scheduler) DailyAt(hhmm, name string, fn JobFunc) error {
	hour, minute, err := ParseTimeOfDay(hhmm)
	if err != nil {
		return err
	}
	s.jobs = append(s.jobs, &job{
		name:   name,
		fn:     fn,
		hour:   hour,
		minute: minute,
		next:   nextDaily(s.clock.Now(), hour, minute),
	})
	return nil
}

// NextRun returns when the named job is next due
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	for _, j := range s.jobs {
		if j.name == name {
			return j.next, true
		}
	}
	return time.Time{}, false
}

// Runs returns how many times the named job has run
func (s *Scheduler) Runs(name string) int {
	for _, j := range s.jobs {
		if j.name == name {
			return j.runs
		}
	}
	return 0
}

// RunPending runs every job that is due, in registration order, and returns
// how many ran. No job runs once the run state reports success.
func (s *Scheduler) RunPending(ctx context.Context) int {
	now := s.clock.Now()
	ran := 0
	for _, j := range s.jobs {
		if s.state.Succeeded() || ctx.Err() != nil {
			break
		}
		if now.Before(j.next) {
			continue
		}
		s.runJob(ctx, j)
		j.reschedule(s.clock.Now())
		ran++
	}
	return ran
}

func (s *Scheduler) runJob(ctx context.Context, j *job) {
	j.runs++
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Job panicked", logger.Fields{"job": j.name}, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := j.fn(ctx); err != nil {
		s.log.Error("Job failed", logger.Fields{"job": j.name}, err)
	}
}

// Run loops until an availability alert has been delivered or ctx is done.
// Each pass runs pending jobs and then sleeps the tick; the run state is
// checked after the sleep.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.RunPending(ctx)

		if err := s.clock.Sleep(ctx, s.tickSleep); err != nil {
			return err
		}

		if s.state.Succeeded() {
			s.log.Info("Breaking loop because a successful email was sent", logger.Fields{
				"succeeded_at": s.state.SucceededAt().Format(time.RFC3339),
			})
			return nil
		}
	}
}

// ParseTimeOfDay parses "HH:MM" in 24-hour form
func ParseTimeOfDay(hhmm string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q (want HH:MM)", ErrInvalidTimeOfDay, hhmm)
	}
	return t.Hour(), t.Minute(), nil
}

// nextDaily returns the first hour:minute strictly after now, in now's location
func nextDaily(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
