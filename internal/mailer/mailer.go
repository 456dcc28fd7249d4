// Package mailer is the outbound-mail boundary. Rendering and delivery are
// external collaborators; the auth core only hands over the activation code
// and must not fail registration when delivery does.
package mailer

import (
	"context"

	"coursehub/internal/logging"
)

// Mail is a single outbound message.
type Mail struct {
	To      string
	Subject string
	Data    map[string]string
}

// Mailer delivers mail out-of-band.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// LogMailer writes would-be deliveries to the structured log. It stands in
// for a real delivery service in development and tests.
type LogMailer struct {
	Log logging.Logger
}

func (l LogMailer) Send(ctx context.Context, m Mail) error {
	l.Log.Info(ctx, "mail delivery", "to", m.To, "subject", m.Subject)
	return nil
}
