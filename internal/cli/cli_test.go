package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pfrederiksen/permit-watch/internal/clock"
	"github.com/pfrederiksen/permit-watch/internal/config"
	"github.com/pfrederiksen/permit-watch/internal/crypto"
	"github.com/pfrederiksen/permit-watch/internal/logger"
	"github.com/pfrederiksen/permit-watch/internal/notifier"
	"github.com/pfrederiksen/permit-watch/internal/prober"
	"github.com/pfrederiksen/permit-watch/internal/reservation"
	"github.com/pfrederiksen/permit-watch/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeRoot(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func baseArgs(extra ...string) []string {
	args := []string{
		"--month", "7", "--day", "4", "--year", "2099",
		"--url", reservation.DefaultURL,
	}
	return append(args, extra...)
}

func TestRootCmd_Flags(t *testing.T) {
	cmd := NewRootCmd()

	tests := []struct {
		name string
		want string
	}{
		{"group_size", "1"},
		{"config_file", "config/config.ini"},
		{"check_availability_every", "10"},
		{"send_status_at", "13:00"},
		{"log_file", "reservation_check.log"},
		{"log_level", "info"},
		{"tick_sleep", "10"},
		{"headless", "true"},
		{"dry-run", "false"},
		{"smtp_host", "smtp.gmail.com"},
		{"smtp_port", "465"},
		{"subject", "Mt. St. Helens Reservation Alert"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := cmd.Flags().Lookup(tt.name)
			require.NotNil(t, f, "flag --%s not defined", tt.name)
			assert.Equal(t, tt.want, f.DefValue)
		})
	}
}

func TestRootCmd_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "missing required flag",
			args:    []string{"--month", "7", "--day", "4", "--year", "2099"},
			wantErr: `required flag(s) "url" not set`,
		},
		{
			name:    "month out of range",
			args:    []string{"--month", "13", "--day", "4", "--year", "2099", "--url", reservation.DefaultURL},
			wantErr: "month 13 out of range",
		},
		{
			name:    "day does not exist",
			args:    []string{"--month", "2", "--day", "30", "--year", "2099", "--url", reservation.DefaultURL},
			wantErr: "day 30 does not exist",
		},
		{
			name:    "zero group size",
			args:    baseArgs("--group_size", "0"),
			wantErr: "group size",
		},
		{
			name:    "interval below one second",
			args:    baseArgs("--check_availability_every", "0"),
			wantErr: "--check_availability_every must be at least 1",
		},
		{
			name:    "tick sleep below one second",
			args:    baseArgs("--tick_sleep", "0"),
			wantErr: "--tick_sleep must be at least 1",
		},
		{
			name:    "unknown log level",
			args:    baseArgs("--log_level", "chatty"),
			wantErr: "--log_level",
		},
		{
			name:    "bad status time",
			args:    baseArgs("--send_status_at", "1pm"),
			wantErr: "--send_status_at",
		},
		{
			name:    "bad smtp port",
			args:    baseArgs("--smtp_port", "70000"),
			wantErr: "--smtp_port out of range",
		},
		{
			name:    "missing config file",
			args:    baseArgs("--config_file", filepath.Join(os.TempDir(), "permit-watch-does-not-exist.ini")),
			wantErr: "loading config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeRoot(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := executeRoot(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "permit-watch dev"), "got %q", out)
}

func TestEncryptPasswordCmd(t *testing.T) {
	t.Setenv(config.EnvPassphrase, "correct horse battery staple")
	t.Setenv(config.EnvPassword, "")

	out, err := executeRoot(t, "app-password\n", "encrypt-password")
	require.NoError(t, err)

	line := strings.TrimSpace(out)
	require.True(t, strings.HasPrefix(line, "password_encrypted = "), "got %q", out)
	encrypted := strings.TrimPrefix(line, "password_encrypted = ")

	plain, err := crypto.NewEncryptor("correct horse battery staple").Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "app-password", plain)

	// The printed line drops straight into the config file
	cfg, err := config.LoadBytes([]byte("[sender_email]\nsender_email = me@example.com\n" + line +
		"\n[receiver_emails]\nreceiver_email1 = a@example.com\n"))
	require.NoError(t, err)
	assert.Equal(t, "app-password", cfg.Password)
}

func TestEncryptPasswordCmd_Errors(t *testing.T) {
	t.Run("no passphrase", func(t *testing.T) {
		t.Setenv(config.EnvPassphrase, "")
		_, err := executeRoot(t, "app-password\n", "encrypt-password")
		assert.ErrorContains(t, err, config.EnvPassphrase)
	})

	t.Run("empty password", func(t *testing.T) {
		t.Setenv(config.EnvPassphrase, "secret")
		_, err := executeRoot(t, "\n", "encrypt-password")
		assert.ErrorContains(t, err, "password is empty")
	})
}

func TestOptions_OpenLogLevel(t *testing.T) {
	o := &options{logFile: filepath.Join(t.TempDir(), logger.DefaultLogFile), logLevel: "error"}

	log, closer, err := o.openLog()
	require.NoError(t, err)
	log.Info("Checking reservation", nil)
	log.Error("Error in group button click", nil, errors.New("element not found"))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(o.logFile)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Checking reservation")
	assert.Contains(t, string(data), "Error in group button click")

	o.logLevel = "loud"
	_, _, err = o.openLog()
	assert.Error(t, err)
}

func TestSummaryFields(t *testing.T) {
	m := logger.NewMetrics()
	m.IncrCounter(logger.CounterChecks)
	m.IncrCounter(logger.CounterChecks)
	m.IncrCounter(logger.CounterNotAvailable)
	m.IncrCounter(logger.CounterEmailsFailed)

	fields := summaryFields(m.GetSnapshot())
	assert.Equal(t, int64(2), fields["checks"])
	assert.Equal(t, int64(1), fields["not_available"])
	assert.Equal(t, int64(0), fields["emails_sent"])
	assert.Equal(t, int64(1), fields["emails_failed"])
}

func TestOptions_OpenLog(t *testing.T) {
	o := &options{logFile: filepath.Join(t.TempDir(), logger.DefaultLogFile), logLevel: "info"}

	log, closer, err := o.openLog()
	require.NoError(t, err)
	log.Info("Checking reservation", logger.Fields{"date": "Thursday, July 4, 2024"})
	log.Debug("hidden at info", nil)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(o.logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"level":"INFO"`)
	assert.NotContains(t, string(data), "hidden at info")
}

// Watcher wiring, driven end to end with a fake browser and a fake clock

type recordingSender struct {
	mu   sync.Mutex
	sent []notifier.Message
}

func (r *recordingSender) Send(ctx context.Context, msg notifier.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

type staticSession struct {
	html string
}

func (s *staticSession) Navigate(ctx context.Context, url string) error { return nil }

func (s *staticSession) ClickN(ctx context.Context, selector string, n int, pause time.Duration) error {
	return nil
}

func (s *staticSession) HTML(ctx context.Context) (string, error) { return s.html, nil }

func (s *staticSession) Close() error { return nil }

type staticLauncher struct {
	pages    []string
	launches int
}

func (l *staticLauncher) Launch(ctx context.Context) (prober.Session, error) {
	i := l.launches
	if i >= len(l.pages) {
		i = len(l.pages) - 1
	}
	l.launches++
	return &staticSession{html: l.pages[i]}, nil
}

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/fixtures/" + name)
	require.NoError(t, err)
	return string(data)
}

func TestWatcher_RunsUntilAlertDelivered(t *testing.T) {
	unavailable := loadFixture(t, "calendar_unavailable.html")
	available := loadFixture(t, "calendar_available.html")

	launcher := &staticLauncher{pages: []string{unavailable, unavailable, available}}
	sender := &recordingSender{}
	cfg := config.EmailConfig{
		SenderEmail: "me@example.com",
		Password:    "app-password",
		Recipients:  []string{"a@example.com", "b@example.com"},
	}
	q := reservation.Query{Month: 7, Day: 4, Year: 2024, GroupSize: 2, URL: reservation.DefaultURL}

	var logs bytes.Buffer
	log := logger.New(logger.LevelInfo, &logs)

	fc := clock.NewFake(time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC))
	w, err := newWatcher(watchParams{
		query:     q,
		interval:  10 * time.Second,
		tickSleep: 10 * time.Second,
		statusAt:  "13:00",
		subject:   "Permit open",
		email:     cfg,
		clock:     fc,
		log:       log,
	}, launcher, sender)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, w.scheduler.Run(ctx))

	slept := fc.Slept()
	require.NotEmpty(t, slept)
	assert.Equal(t, 10*time.Second, slept[len(slept)-1], "loop ends on a tick sleep")

	assert.True(t, w.state.Succeeded())
	assert.Equal(t, 3, launcher.launches, "no checks after the alert")

	require.Len(t, sender.sent, 2)
	for i, to := range cfg.Recipients {
		msg := sender.sent[i]
		assert.Equal(t, []string{to}, msg.To)
		assert.Equal(t, "Permit open", msg.Subject)
		assert.Equal(t, "me@example.com", msg.From)
		assert.Contains(t, msg.Body, "2 spots on Thursday, July 4, 2024")
		require.Len(t, msg.Attachments, 1)
		assert.Equal(t, "text/calendar", msg.Attachments[0].ContentType)
	}
	assert.Contains(t, logs.String(), "Breaking loop because a successful email was sent")
}

func TestNewWatcher_RejectsBadSchedule(t *testing.T) {
	cfg := config.EmailConfig{SenderEmail: "me@example.com", Recipients: []string{"a@example.com"}}
	q := reservation.Query{Month: 7, Day: 4, Year: 2024, GroupSize: 1, URL: reservation.DefaultURL}
	wp := watchParams{
		query:     q,
		interval:  0,
		tickSleep: scheduler.DefaultTickSleep,
		statusAt:  "13:00",
		email:     cfg,
		clock:     clock.Real{},
		log:       logger.New(logger.LevelInfo, &bytes.Buffer{}),
	}

	_, err := newWatcher(wp, &staticLauncher{pages: []string{""}}, &recordingSender{})
	assert.ErrorIs(t, err, scheduler.ErrIntervalTooShort)

	wp.interval = time.Second
	wp.tickSleep = 0
	_, err = newWatcher(wp, &staticLauncher{pages: []string{""}}, &recordingSender{})
	assert.ErrorIs(t, err, scheduler.ErrIntervalTooShort)
	wp.tickSleep = scheduler.DefaultTickSleep

	wp.interval = time.Second
	wp.statusAt = "25:99"
	_, err = newWatcher(wp, &staticLauncher{pages: []string{""}}, &recordingSender{})
	assert.ErrorIs(t, err, scheduler.ErrInvalidTimeOfDay)
}
