package notifier

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSMTPSender(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		port     int
		username string
		password string
		wantErr  bool
	}{
		{name: "valid", host: DefaultSMTPHost, port: DefaultSMTPPort, username: "a@example.com", password: "pw"},
		{name: "missing host", port: DefaultSMTPPort, username: "a@example.com", password: "pw", wantErr: true},
		{name: "missing port", host: DefaultSMTPHost, username: "a@example.com", password: "pw", wantErr: true},
		{name: "missing password", host: DefaultSMTPHost, port: DefaultSMTPPort, username: "a@example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSMTPSender(tt.host, tt.port, tt.username, tt.password)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}
}

func TestBuildMsg(t *testing.T) {
	m, err := buildMsg(Message{
		From:    "alerts@example.com",
		To:      []string{"a@example.com"},
		Subject: DefaultAlertSubject,
		Body:    "Permit availability found",
		Attachments: []Attachment{
			{Filename: "permit.ics", ContentType: "text/calendar", Data: []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")},
		},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "Subject: "+DefaultAlertSubject)
	assert.Contains(t, raw, "X-Priority: 1")
	assert.Contains(t, raw, "a@example.com")
	assert.Contains(t, raw, "permit.ics")
}

func TestBuildMsg_Invalid(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{name: "no recipients", msg: Message{From: "alerts@example.com"}},
		{name: "bad from", msg: Message{From: "not an address", To: []string{"a@example.com"}}},
		{name: "bad to", msg: Message{From: "alerts@example.com", To: []string{"nope"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildMsg(tt.msg)
			assert.Error(t, err)
		})
	}
}
