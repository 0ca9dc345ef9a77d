package sqlite

import (
	"context"
	"time"

	"github.com/inkwellhq/inkwell/internal/auth/domain"
)

type securityEventsRepo struct {
	db dbtx
}

func (r *securityEventsRepo) Append(ctx context.Context, ev domain.SecurityEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO security_events (id, user_id, event_type, ip_address, user_agent, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, mapOptionalString(ev.UserID), ev.EventType, ev.IP, ev.UserAgent, ev.Reason, ev.CreatedAt,
	)
	return err
}

func (r *securityEventsRepo) CountFailuresByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM security_events
		 WHERE ip_address = ? AND event_type = ? AND created_at > ?`,
		ip, domain.EventLoginFailure, since,
	).Scan(&count)
	return count, err
}

func (r *securityEventsRepo) CountFailuresByUser(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM security_events
		 WHERE user_id = ? AND event_type = ? AND created_at > ?`,
		userID, domain.EventLoginFailure, since,
	).Scan(&count)
	return count, err
}

func (r *securityEventsRepo) DeleteFailures(ctx context.Context, ip string, userID string) error {
	// Scoped to the (ip, account) pair plus anonymous failures from the IP.
	// Failures against other accounts from the same IP stay counted.
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM security_events
		 WHERE ip_address = ? AND event_type = ? AND (user_id = ? OR user_id IS NULL)`,
		ip, domain.EventLoginFailure, userID,
	)
	return err
}

func (r *securityEventsRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM security_events WHERE created_at < ?`, cutoff)
	return err
}
