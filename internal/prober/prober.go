package prober

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pfrederiksen/permit-watch/internal/clock"
	"github.com/pfrederiksen/permit-watch/internal/logger"
	"github.com/pfrederiksen/permit-watch/internal/notifier"
	"github.com/pfrederiksen/permit-watch/internal/reservation"
)

const (
	DefaultPageLoadWait     = 5 * time.Second
	DefaultClickPause       = 1 * time.Second
	DefaultAvailabilityWait = 2 * time.Second
	DefaultPollEvery        = 250 * time.Millisecond
)

// Session is a browser tab the prober drives
type Session interface {
	Navigate(ctx context.Context, url string) error
	ClickN(ctx context.Context, selector string, n int, pause time.Duration) error
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Launcher opens a new browser session for each check
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Notifier receives found availability
type Notifier interface {
	NotifyAvailable(ctx context.Context, a notifier.Availability) error
}

// Status is the outcome of one check
type Status int

const (
	NotYetAvailable Status = iota
	Found
	TransientError
)

func (s Status) String() string {
	switch s {
	case NotYetAvailable:
		return "not_yet_available"
	case Found:
		return "found"
	case TransientError:
		return "transient_error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is returned by Check. Err is set for TransientError, and for Found
// when the notification could not be delivered to every recipient.
type Result struct {
	Status Status
	Date   string
	Err    error
}

// Config holds the fixed waits used while driving the page
type Config struct {
	PageLoadWait     time.Duration
	ClickPause       time.Duration
	AvailabilityWait time.Duration
	PollEvery        time.Duration
}

// DefaultConfig returns the waits used against recreation.gov
func DefaultConfig() Config {
	return Config{
		PageLoadWait:     DefaultPageLoadWait,
		ClickPause:       DefaultClickPause,
		AvailabilityWait: DefaultAvailabilityWait,
		PollEvery:        DefaultPollEvery,
	}
}

// Prober runs availability checks for one reservation query
type Prober struct {
	query    reservation.Query
	launcher Launcher
	notifier Notifier
	cfg      Config
	clock    clock.Clock
	log      *logger.Logger
	metrics  *logger.Metrics
}

// New creates a Prober
func New(q reservation.Query, launcher Launcher, n Notifier, cfg Config) *Prober {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = DefaultPollEvery
	}
	return &Prober{
		query:    q,
		launcher: launcher,
		notifier: n,
		cfg:      cfg,
		clock:    clock.Real{},
		log:      logger.Default(),
		metrics:  logger.DefaultMetrics(),
	}
}

// SetClock replaces the clock used for the current month and for waits
func (p *Prober) SetClock(c clock.Clock) {
	p.clock = c
}

// SetLogger replaces the logger
func (p *Prober) SetLogger(l *logger.Logger) {
	p.log = l
}

// Check runs one availability check in a fresh browser session
func (p *Prober) Check(ctx context.Context) Result {
	start := p.clock.Now()
	p.metrics.IncrCounter(logger.CounterChecks)
	defer func() {
		p.metrics.RecordTiming(logger.TimingCheck, p.clock.Now().Sub(start))
	}()

	date := p.query.FormattedDate()
	p.log.Info("Checking reservation", logger.Fields{
		"checked_at": start.Format("2006-01-02 15:04:05"),
		"date":       date,
		"group_size": p.query.GroupSize,
	})

	res := p.check(ctx, date)
	switch res.Status {
	case NotYetAvailable:
		p.metrics.IncrCounter(logger.CounterNotAvailable)
	case TransientError:
		p.metrics.IncrCounter(logger.CounterCheckErrors)
	}
	return res
}

func (p *Prober) check(ctx context.Context, date string) Result {
	session, err := p.launcher.Launch(ctx)
	if err != nil {
		return Result{Status: TransientError, Date: date, Err: fmt.Errorf("launching browser: %w", err)}
	}
	defer func() {
		if err := session.Close(); err != nil {
			p.log.Warn("Failed to close browser session", logger.Fields{"error": err.Error()})
		}
	}()

	if err := session.Navigate(ctx, p.query.URL); err != nil {
		return Result{Status: TransientError, Date: date, Err: err}
	}
	if err := p.clock.Sleep(ctx, p.cfg.PageLoadWait); err != nil {
		return Result{Status: TransientError, Date: date, Err: err}
	}

	p.setGroupSize(ctx, session)
	p.advanceMonth(ctx, session)

	found, err := p.waitForAvailability(ctx, session, date)
	if err != nil {
		return Result{Status: TransientError, Date: date, Err: err}
	}
	if !found {
		p.log.Info("Date availability element does not exist.", logger.Fields{"date": date})
		return Result{Status: NotYetAvailable, Date: date}
	}

	p.log.Info("Permits available. Attempting to notify now.", logger.Fields{"date": date})
	err = p.notifier.NotifyAvailable(ctx, notifier.Availability{
		GroupSize: p.query.GroupSize,
		Date:      date,
		Day:       p.query.Date(),
		URL:       p.query.URL,
		QueryID:   p.query.ID(),
	})
	return Result{Status: Found, Date: date, Err: err}
}

// setGroupSize clicks "Add members" once per group member. Failures are
// logged and the check continues.
func (p *Prober) setGroupSize(ctx context.Context, s Session) {
	if err := s.ClickN(ctx, AddMembersSelector, p.query.GroupSize, p.cfg.ClickPause); err != nil {
		p.log.Error("Error in group button click", logger.Fields{"group_size": p.query.GroupSize}, err)
	}
}

// advanceMonth clicks "Next" until the requested month is shown. A month in
// the past is an input error: it is logged and the calendar is left alone.
func (p *Prober) advanceMonth(ctx context.Context, s Session) {
	steps, err := reservation.MonthSteps(p.query.Month, p.clock.Now().Month())
	if err != nil {
		p.log.Error("Error in month button click", logger.Fields{"month": p.query.Month}, err)
		return
	}
	if steps == 0 {
		return
	}
	if err := s.ClickN(ctx, NextMonthSelector, steps, p.cfg.ClickPause); err != nil {
		p.log.Error("Error in month button click", logger.Fields{"steps": steps}, err)
	}
}

// waitForAvailability polls the page HTML for the available cell within
// AvailabilityWait. It returns an error only if the page could never be read.
func (p *Prober) waitForAvailability(ctx context.Context, s Session, date string) (bool, error) {
	attempts := int(p.cfg.AvailabilityWait/p.cfg.PollEvery) + 1

	var lastErr error
	read := false
	for i := 0; i < attempts; i++ {
		html, err := s.HTML(ctx)
		if err != nil {
			lastErr = err
		} else {
			read = true
			found, err := FindAvailableCell(html, date)
			if err != nil {
				lastErr = err
			} else if found {
				return true, nil
			} else if i == 0 {
				p.logAvailableLabels(html)
			}
		}

		if i < attempts-1 {
			if err := p.clock.Sleep(ctx, p.cfg.PollEvery); err != nil {
				return false, err
			}
		}
	}

	if !read && lastErr != nil {
		return false, fmt.Errorf("reading calendar: %w", lastErr)
	}
	if lastErr != nil && !errors.Is(lastErr, context.Canceled) {
		p.log.Debug("Intermittent calendar read failure", logger.Fields{"error": lastErr.Error()})
	}
	return false, nil
}

func (p *Prober) logAvailableLabels(html string) {
	labels, err := AvailableLabels(html)
	if err != nil {
		return
	}
	p.log.Debug("Available calendar cells", logger.Fields{"labels": labels})
}
