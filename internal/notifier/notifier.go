package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pfrederiksen/permit-watch/internal/calendar"
	"github.com/pfrederiksen/permit-watch/internal/logger"
	"github.com/pfrederiksen/permit-watch/internal/runstate"
)

const (
	DefaultAlertSubject = "Mt. St. Helens Reservation Alert"
	StatusSubject       = "Script Status: Still Checking"
)

// Attachment is a file attached to a message
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a single email to one or more recipients
type Message struct {
	From        string
	To          []string
	Subject     string
	Body        string // plain text
	Attachments []Attachment
}

// Sender delivers a message. Each call is an independent transport session.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Availability describes an open permit date found by the prober
type Availability struct {
	GroupSize int
	Date      string    // formatted, e.g. "Thursday, July 4, 2024"
	Day       time.Time // calendar day, used for the .ics attachment
	URL       string
	QueryID   string
}

// Notifier sends availability and status emails to a fixed recipient list
type Notifier struct {
	sender       Sender
	from         string
	recipients   []string
	state        *runstate.RunState
	alertSubject string
	log          *logger.Logger
	metrics      *logger.Metrics
	now          func() time.Time
}

// New creates a Notifier. state is marked when an availability alert is delivered.
func New(sender Sender, from string, recipients []string, state *runstate.RunState) *Notifier {
	return &Notifier{
		sender:       sender,
		from:         from,
		recipients:   recipients,
		state:        state,
		alertSubject: DefaultAlertSubject,
		log:          logger.Default(),
		metrics:      logger.DefaultMetrics(),
		now:          time.Now,
	}
}

// SetAlertSubject overrides the availability alert subject line
func (n *Notifier) SetAlertSubject(subject string) {
	if subject != "" {
		n.alertSubject = subject
	}
}

// SetLogger overrides the logger used for per-recipient results
func (n *Notifier) SetLogger(l *logger.Logger) {
	n.log = l
}

// NotifyAvailable emails every recipient that permits are available.
// The run state is marked after the first successful delivery; remaining
// recipients are still attempted after a failure.
func (n *Notifier) NotifyAvailable(ctx context.Context, a Availability) error {
	body := FormatAvailableBody(a)

	var attachments []Attachment
	if !a.Day.IsZero() {
		ics := calendar.GenerateICS(calendar.Entry{
			UID:         a.QueryID,
			Day:         a.Day,
			Summary:     fmt.Sprintf("Permit available - %s", a.Date),
			Description: body,
			URL:         a.URL,
		}, n.now())
		attachments = append(attachments, Attachment{
			Filename:    "permit.ics",
			ContentType: "text/calendar",
			Data:        []byte(ics),
		})
	}

	sent, err := n.sendAll(ctx, n.alertSubject, body, attachments)
	if sent > 0 && n.state != nil {
		n.state.MarkSuccess()
	}
	if err != nil {
		return fmt.Errorf("sending notification email: %w", err)
	}
	return nil
}

// NotifyStatus emails every recipient that the watcher is still running.
// It never touches the run state.
func (n *Notifier) NotifyStatus(ctx context.Context) error {
	body := FormatStatusBody(n.now(), n.metrics.Counter(logger.CounterChecks))

	sent, err := n.sendAll(ctx, StatusSubject, body, nil)
	if sent > 0 {
		n.metrics.IncrCounter(logger.CounterStatusEmails)
	}
	if err != nil {
		return fmt.Errorf("sending status email: %w", err)
	}
	return nil
}

// sendAll sends one message per recipient and returns how many succeeded
// along with every failure joined.
func (n *Notifier) sendAll(ctx context.Context, subject, body string, attachments []Attachment) (int, error) {
	if len(n.recipients) == 0 {
		return 0, errors.New("no recipients configured")
	}

	var errs []error
	sent := 0
	for _, recipient := range n.recipients {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := n.send(ctx, recipient, subject, body, attachments); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", recipient, err))
			continue
		}
		sent++
	}

	return sent, errors.Join(errs...)
}

func (n *Notifier) send(ctx context.Context, recipient, subject, body string, attachments []Attachment) error {
	start := time.Now()
	err := n.sender.Send(ctx, Message{
		From:        n.from,
		To:          []string{recipient},
		Subject:     subject,
		Body:        body,
		Attachments: attachments,
	})
	n.metrics.RecordTiming(logger.TimingSend, time.Since(start))

	if err != nil {
		n.metrics.IncrCounter(logger.CounterEmailsFailed)
		n.log.Error("Failed to send email", logger.Fields{
			"recipient": recipient,
			"subject":   subject,
		}, err)
		return err
	}

	n.metrics.IncrCounter(logger.CounterEmailsSent)
	n.log.Info("Email sent successfully", logger.Fields{
		"recipient": recipient,
		"subject":   subject,
	})
	return nil
}

// FormatAvailableBody renders the availability alert text
func FormatAvailableBody(a Availability) string {
	return fmt.Sprintf("Permit availability found for %d spots on %s. Book now at %s!", a.GroupSize, a.Date, a.URL)
}

// FormatStatusBody renders the daily status text
func FormatStatusBody(now time.Time, checks int64) string {
	return fmt.Sprintf("The script is still running and checking for reservations as of %s.\n\nAvailability checks run so far: %d.",
		now.Format("2006-01-02 15:04:05"), checks)
}
