package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/pfrederiksen/permit-watch/internal/config"
	"github.com/pfrederiksen/permit-watch/internal/crypto"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "permit-watch %s (%s, %s/%s)\n",
				Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return err
		},
	}
}

func newEncryptPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt-password",
		Short: "Encrypt a sender password for the config file",
		Long: `Reads the sender password from the first line of stdin and prints a
password_encrypted line for the [sender_email] section. The passphrase is
taken from $` + config.EnvPassphrase + `; the same value must be set when the
watcher runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := crypto.NewEncryptor(os.Getenv(config.EnvPassphrase))
			if enc == nil {
				return fmt.Errorf("%s must be set", config.EnvPassphrase)
			}

			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading password from stdin: %w", err)
			}
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				return errors.New("password is empty")
			}

			encrypted, err := enc.Encrypt(password)
			if err != nil {
				return fmt.Errorf("encrypting password: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", config.KeyPasswordEncrypted, encrypted)
			return err
		},
	}
}
