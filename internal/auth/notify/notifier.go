// Package notify is the outbound email boundary of the auth service.
// Delivery is owned by the platform's email subsystem; this package only
// hands messages across and guarantees that handing them across can never
// fail or block an auth operation.
package notify

import (
	"context"
	"log/slog"
)

// Notifier sends account lifecycle emails. Implementations are best-effort:
// the auth flows log failures and move on.
type Notifier interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
	SendPasswordChanged(ctx context.Context, email string) error
	SendLoginAlert(ctx context.Context, email, ip string) error
}

// LogNotifier writes messages to the log instead of delivering them. The
// default in dev and the fallback when no delivery backend is configured.
// Tokens are never logged, only their presence.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) log() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

func (n *LogNotifier) SendVerification(ctx context.Context, email, token string) error {
	n.log().Info("email notification", "kind", "verification", "to", email, "has_token", token != "")
	return nil
}

func (n *LogNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	n.log().Info("email notification", "kind", "password_reset", "to", email, "has_token", token != "")
	return nil
}

func (n *LogNotifier) SendPasswordChanged(ctx context.Context, email string) error {
	n.log().Info("email notification", "kind", "password_changed", "to", email)
	return nil
}

func (n *LogNotifier) SendLoginAlert(ctx context.Context, email, ip string) error {
	n.log().Info("email notification", "kind", "login_alert", "to", email, "ip", ip)
	return nil
}
