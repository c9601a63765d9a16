package notifier

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// DryRunSender prints messages instead of sending them
type DryRunSender struct {
	out io.Writer
}

// NewDryRunSender creates a dry-run sender writing to stdout
func NewDryRunSender() *DryRunSender {
	return &DryRunSender{out: os.Stdout}
}

// Send prints the message that would be sent
func (s *DryRunSender) Send(ctx context.Context, msg Message) error {
	fmt.Fprintf(s.out, "--- Email to %s ---\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(s.out, "From: %s\n", msg.From)
	fmt.Fprintf(s.out, "Subject: %s\n\n", msg.Subject)
	fmt.Fprintln(s.out, msg.Body)
	for _, a := range msg.Attachments {
		fmt.Fprintf(s.out, "(Attachment: %s, %s, %d bytes)\n", a.Filename, a.ContentType, len(a.Data))
	}
	fmt.Fprintln(s.out)
	return nil
}
