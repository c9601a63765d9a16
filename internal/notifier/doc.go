// Package notifier sends permit-watch emails.
//
// The notifier package composes the availability alert and the daily status email and
// delivers each one to every configured recipient through a Sender. The production
// Sender speaks SMTP over implicit TLS with authentication; a dry-run Sender prints
// messages instead. A delivered availability alert marks the shared RunState so the
// watch loop can stop.
package notifier
