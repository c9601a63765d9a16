// Package config loads the email settings for permit-watch.
//
// Settings come from an INI file with a [sender_email] section and a
// [receiver_emails] section of receiver_email1..N keys. An optional .env file
// is loaded first so the sender password, or the passphrase protecting an
// encrypted password, can be kept out of the INI file.
package config
