package config

import (
	"errors"
	"fmt"
	"net/mail"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pfrederiksen/permit-watch/internal/crypto"
	"gopkg.in/ini.v1"
)

const (
	DefaultConfigFile = "config/config.ini"
	DefaultEnvFile    = ".env"

	SectionSender    = "sender_email"
	SectionReceivers = "receiver_emails"

	KeySenderEmail       = "sender_email"
	KeyPassword          = "password"
	KeyPasswordEncrypted = "password_encrypted"
	KeyReceiverPrefix    = "receiver_email"

	// EnvPassword overrides the password from the config file
	EnvPassword = "PERMIT_WATCH_SENDER_PASSWORD"
	// EnvPassphrase decrypts password_encrypted
	EnvPassphrase = "PERMIT_WATCH_PASSPHRASE"
)

var (
	ErrMissingSection = errors.New("missing config section")
	ErrMissingKey     = errors.New("missing config key")
)

// Values are taken whole, so passwords may contain '#' and ';'. Section and
// key names match case-insensitively.
var loadOptions = ini.LoadOptions{
	IgnoreInlineComment: true,
	Insensitive:         true,
}

// EmailConfig holds the sender credentials and recipients.
type EmailConfig struct {
	SenderEmail string
	Password    string
	Recipients  []string
}

// LoadEnv loads environment variables from path if it exists.
// Variables already set in the environment win.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

// Load reads the email config from an INI file.
func Load(path string) (EmailConfig, error) {
	f, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		return EmailConfig{}, fmt.Errorf("reading config file: %w", err)
	}
	return parse(f)
}

// LoadBytes parses INI content already in memory.
func LoadBytes(data []byte) (EmailConfig, error) {
	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return EmailConfig{}, fmt.Errorf("parsing config: %w", err)
	}
	return parse(f)
}

func parse(f *ini.File) (EmailConfig, error) {
	sender, err := f.GetSection(SectionSender)
	if err != nil {
		return EmailConfig{}, fmt.Errorf("%w: [%s]", ErrMissingSection, SectionSender)
	}

	cfg := EmailConfig{
		SenderEmail: strings.TrimSpace(sender.Key(KeySenderEmail).String()),
	}
	if cfg.SenderEmail == "" {
		return EmailConfig{}, fmt.Errorf("%w: %s.%s", ErrMissingKey, SectionSender, KeySenderEmail)
	}
	if _, err := mail.ParseAddress(cfg.SenderEmail); err != nil {
		return EmailConfig{}, fmt.Errorf("invalid sender email %q: %w", cfg.SenderEmail, err)
	}

	cfg.Password, err = resolvePassword(sender)
	if err != nil {
		return EmailConfig{}, err
	}

	cfg.Recipients, err = parseRecipients(f)
	if err != nil {
		return EmailConfig{}, err
	}

	return cfg, nil
}

func resolvePassword(sec *ini.Section) (string, error) {
	if v := os.Getenv(EnvPassword); v != "" {
		return v, nil
	}
	if sec.HasKey(KeyPassword) {
		return sec.Key(KeyPassword).String(), nil
	}
	if sec.HasKey(KeyPasswordEncrypted) {
		enc := crypto.NewEncryptor(os.Getenv(EnvPassphrase))
		if enc == nil {
			return "", fmt.Errorf("%s.%s is set but %s is empty", SectionSender, KeyPasswordEncrypted, EnvPassphrase)
		}
		password, err := enc.Decrypt(strings.TrimSpace(sec.Key(KeyPasswordEncrypted).String()))
		if err != nil {
			return "", fmt.Errorf("decrypting %s.%s: %w", SectionSender, KeyPasswordEncrypted, err)
		}
		return password, nil
	}
	return "", fmt.Errorf("%w: %s.%s", ErrMissingKey, SectionSender, KeyPassword)
}

// parseRecipients reads receiver_email1..N where N is the number of keys in
// the section, preserving index order.
func parseRecipients(f *ini.File) ([]string, error) {
	sec, err := f.GetSection(SectionReceivers)
	if err != nil {
		return nil, fmt.Errorf("%w: [%s]", ErrMissingSection, SectionReceivers)
	}

	n := len(sec.Keys())
	if n == 0 {
		return nil, fmt.Errorf("%w: [%s] has no recipients", ErrMissingKey, SectionReceivers)
	}

	recipients := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		name := fmt.Sprintf("%s%d", KeyReceiverPrefix, i)
		if !sec.HasKey(name) {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingKey, SectionReceivers, name)
		}
		addr := strings.TrimSpace(sec.Key(name).String())
		if _, err := mail.ParseAddress(addr); err != nil {
			return nil, fmt.Errorf("invalid %s.%s %q: %w", SectionReceivers, name, addr, err)
		}
		recipients = append(recipients, addr)
	}

	return recipients, nil
}
