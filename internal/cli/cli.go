package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pfrederiksen/permit-watch/internal/browser"
	"github.com/pfrederiksen/permit-watch/internal/clock"
	"github.com/pfrederiksen/permit-watch/internal/config"
	"github.com/pfrederiksen/permit-watch/internal/logger"
	"github.com/pfrederiksen/permit-watch/internal/notifier"
	"github.com/pfrederiksen/permit-watch/internal/prober"
	"github.com/pfrederiksen/permit-watch/internal/reservation"
	"github.com/pfrederiksen/permit-watch/internal/runstate"
	"github.com/pfrederiksen/permit-watch/internal/scheduler"
	"github.com/spf13/cobra"
)

// ExitError is the process exit code for startup errors and signal shutdown
const ExitError = 1

const (
	jobCheck  = "check_availability"
	jobStatus = "send_status"
)

// options holds the parsed flags for one invocation
type options struct {
	month      int
	day        int
	year       int
	groupSize  int
	url        string
	configFile string
	checkEvery int
	tickSleep  int
	statusAt   string
	logFile    string
	logLevel   string
	headless   bool
	dryRun     bool
	smtpHost   string
	smtpPort   int
	subject    string
	verbose    bool
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:   "permit-watch",
		Short: "Watch a recreation.gov permit calendar and email when a date opens up",
		Long: `Checks a recreation.gov permit page for an available date on a fixed
interval and emails every configured recipient as soon as it opens up.
A status email is sent once a day while the watch is running.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.IntVar(&o.month, "month", 0, "Desired month (1-12) (required)")
	f.IntVar(&o.day, "day", 0, "Desired day of the month (required)")
	f.IntVar(&o.year, "year", 0, "Desired year (required)")
	f.IntVar(&o.groupSize, "group_size", 1, "Number of people in the group")
	f.StringVar(&o.url, "url", "", "Permit page URL (required)")
	f.StringVar(&o.configFile, "config_file", config.DefaultConfigFile, "Path to the INI email config")
	f.IntVar(&o.checkEvery, "check_availability_every", 10, "Seconds between availability checks")
	f.IntVar(&o.tickSleep, "tick_sleep", int(scheduler.DefaultTickSleep/time.Second), "Seconds the loop sleeps between passes")
	f.StringVar(&o.statusAt, "send_status_at", "13:00", "Local time (HH:MM) to send the daily status email")
	f.StringVar(&o.logFile, "log_file", logger.DefaultLogFile, "Path of the append-only log file")
	f.StringVar(&o.logLevel, "log_level", "info", "Minimum log level: debug, info, warn or error")
	f.BoolVar(&o.headless, "headless", true, "Run Chrome without a window")
	f.BoolVar(&o.dryRun, "dry-run", false, "Print emails to stdout instead of sending them")
	f.StringVar(&o.smtpHost, "smtp_host", notifier.DefaultSMTPHost, "SMTP server host (implicit TLS)")
	f.IntVar(&o.smtpPort, "smtp_port", notifier.DefaultSMTPPort, "SMTP server port")
	f.StringVar(&o.subject, "subject", notifier.DefaultAlertSubject, "Subject of the availability email")
	f.BoolVar(&o.verbose, "verbose", false, "Log at DEBUG level, overriding --log_level, and mirror the log to stderr")

	for _, name := range []string{"month", "day", "year", "url"} {
		cmd.MarkFlagRequired(name) // nolint:errcheck
	}

	cmd.AddCommand(newVersionCmd(), newEncryptPasswordCmd())

	return cmd
}

func (o *options) query() reservation.Query {
	return reservation.Query{
		Month:     o.month,
		Day:       o.day,
		Year:      o.year,
		GroupSize: o.groupSize,
		URL:       o.url,
	}
}

// validate checks every flag that can be checked without touching the
// filesystem or network.
func (o *options) validate() (reservation.Query, time.Duration, error) {
	q := o.query()
	if err := q.Validate(); err != nil {
		return reservation.Query{}, 0, err
	}

	interval := time.Duration(o.checkEvery) * time.Second
	if interval < scheduler.MinInterval {
		return reservation.Query{}, 0, fmt.Errorf("--check_availability_every must be at least 1 (got %d)", o.checkEvery)
	}
	if time.Duration(o.tickSleep)*time.Second < scheduler.MinInterval {
		return reservation.Query{}, 0, fmt.Errorf("--tick_sleep must be at least 1 (got %d)", o.tickSleep)
	}
	if _, err := logger.ParseLevel(o.logLevel); err != nil {
		return reservation.Query{}, 0, fmt.Errorf("--log_level: %w", err)
	}
	if _, _, err := scheduler.ParseTimeOfDay(o.statusAt); err != nil {
		return reservation.Query{}, 0, fmt.Errorf("--send_status_at: %w", err)
	}
	if o.smtpPort < 1 || o.smtpPort > 65535 {
		return reservation.Query{}, 0, fmt.Errorf("--smtp_port out of range: %d", o.smtpPort)
	}

	return q, interval, nil
}

func (o *options) loadConfig() (config.EmailConfig, error) {
	if err := config.LoadEnv(config.DefaultEnvFile); err != nil {
		return config.EmailConfig{}, err
	}
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return config.EmailConfig{}, fmt.Errorf("loading config %s: %w", o.configFile, err)
	}
	return cfg, nil
}

func (o *options) sender(cfg config.EmailConfig) (notifier.Sender, error) {
	if o.dryRun {
		return notifier.NewDryRunSender(), nil
	}
	s, err := notifier.NewSMTPSender(o.smtpHost, o.smtpPort, cfg.SenderEmail, cfg.Password)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (o *options) openLog() (*logger.Logger, io.Closer, error) {
	level, err := logger.ParseLevel(o.logLevel)
	if err != nil {
		return nil, nil, err
	}

	f, err := logger.OpenFile(o.logFile)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = f
	if o.verbose {
		level = logger.LevelDebug
		out = io.MultiWriter(f, os.Stderr)
	}
	return logger.New(level, out), f, nil
}

// watcher is the assembled loop and the parts it drives
type watcher struct {
	state     *runstate.RunState
	notifier  *notifier.Notifier
	prober    *prober.Prober
	scheduler *scheduler.Scheduler
}

// watchParams is everything newWatcher needs besides the browser and mail transport
type watchParams struct {
	query     reservation.Query
	interval  time.Duration
	tickSleep time.Duration
	statusAt  string
	subject   string
	email     config.EmailConfig
	clock     clock.Clock
	log       *logger.Logger
}

func newWatcher(wp watchParams, launcher prober.Launcher, sender notifier.Sender) (*watcher, error) {
	state := runstate.New()
	cfg, log := wp.email, wp.log

	n := notifier.New(sender, cfg.SenderEmail, cfg.Recipients, state)
	n.SetAlertSubject(wp.subject)
	n.SetLogger(log)

	p := prober.New(wp.query, launcher, n, prober.DefaultConfig())
	p.SetClock(wp.clock)
	p.SetLogger(log)

	s := scheduler.New(state)
	s.SetClock(wp.clock)
	s.SetLogger(log)
	if err := s.SetTickSleep(wp.tickSleep); err != nil {
		return nil, err
	}
	if err := s.Every(wp.interval, jobCheck, func(ctx context.Context) error {
		return p.Check(ctx).Err
	}); err != nil {
		return nil, err
	}
	if err := s.DailyAt(wp.statusAt, jobStatus, n.NotifyStatus); err != nil {
		return nil, err
	}

	return &watcher{state: state, notifier: n, prober: p, scheduler: s}, nil
}

func (o *options) run(ctx context.Context) error {
	q, interval, err := o.validate()
	if err != nil {
		return err
	}

	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	sender, err := o.sender(cfg)
	if err != nil {
		return fmt.Errorf("initializing email sender: %w", err)
	}

	log, closer, err := o.openLog()
	if err != nil {
		return err
	}
	defer closer.Close() // nolint:errcheck
	logger.SetDefault(log)

	chrome := browser.New(browser.Options{Headless: o.headless})
	w, err := newWatcher(watchParams{
		query:     q,
		interval:  interval,
		tickSleep: time.Duration(o.tickSleep) * time.Second,
		statusAt:  o.statusAt,
		subject:   o.subject,
		email:     cfg,
		clock:     clock.Real{},
		log:       log,
	}, chromeLauncher{chrome}, sender)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting reservation watch", logger.Fields{
		"date":           q.FormattedDate(),
		"group_size":     q.GroupSize,
		"url":            q.URL,
		"check_every":    interval.String(),
		"send_status_at": o.statusAt,
		"recipients":     len(cfg.Recipients),
		"dry_run":        o.dryRun,
	})

	err = w.scheduler.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info("Stopped before a reservation was found", summaryFields(logger.GetMetricsSnapshot()))
	} else if err == nil {
		log.Info("Reservation watch finished", summaryFields(logger.GetMetricsSnapshot()))
	}
	return err
}

// summaryFields picks the run totals out of a metrics snapshot
func summaryFields(snapshot map[string]interface{}) logger.Fields {
	counters, _ := snapshot["counters"].(map[string]int64)
	return logger.Fields{
		"checks":        counters[logger.CounterChecks],
		"not_available": counters[logger.CounterNotAvailable],
		"check_errors":  counters[logger.CounterCheckErrors],
		"emails_sent":   counters[logger.CounterEmailsSent],
		"emails_failed": counters[logger.CounterEmailsFailed],
	}
}

// chromeLauncher adapts browser.Chrome to prober.Launcher
type chromeLauncher struct {
	*browser.Chrome
}

func (l chromeLauncher) Launch(ctx context.Context) (prober.Session, error) {
	s, err := l.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}
