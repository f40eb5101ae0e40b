package workspace

import "context"

// Mailer submits a single plain-text message. Implementations own all
// transport mechanics (relay, TLS, authentication).
type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// RecipientResolver maps a login name to the mail address the user has
// configured for workspace notifications. Lookup failures are per-user
// problems and are treated as recoverable by the sweep.
type RecipientResolver interface {
	Lookup(username string) (string, error)
}
