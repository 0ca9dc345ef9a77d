// Package mail defines the outbound email port used during registration and
// password changes. The auth service only depends on the interface; delivery
// belongs to whatever transport the deployment wires in.
package mail

import (
	"context"
	"log/slog"
)

// Mailer sends transactional auth emails. Verification links are minted by
// the web layer, which owns the signed-URL scheme; this port only triggers
// delivery.
type Mailer interface {
	SendVerification(ctx context.Context, to, username string) error
	SendPasswordChanged(ctx context.Context, to, username string) error
}

// LogMailer writes mail events to the log instead of sending anything.
// Default for local development and tests.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) SendVerification(ctx context.Context, to, username string) error {
	m.Logger.Info("verification email", "to", to, "username", username)
	return nil
}

func (m *LogMailer) SendPasswordChanged(ctx context.Context, to, username string) error {
	m.Logger.Info("password changed email", "to", to, "username", username)
	return nil
}
