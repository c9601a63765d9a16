// Package cli implements the command-line interface for permit-watch.
//
// The root command parses the reservation query and scheduling flags, loads
// the INI email config, and runs the watch loop: an availability check every
// few seconds and a daily status email, until one availability alert has been
// delivered. The encrypt-password subcommand produces a password_encrypted
// value for the config file.
package cli
