// Package notify delivers password reset links.
//
// [LogNotifier] writes the link to the log and is meant for development.
// [SMTPNotifier] sends mail through the SMTP server configured in the
// system settings.
package notify
