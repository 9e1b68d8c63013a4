// Package notify delivers account emails. SMTPDispatcher sends through an
// SMTP relay with gomail; LogDispatcher writes messages to a zerolog logger
// for local development when no relay is configured.
package notify
