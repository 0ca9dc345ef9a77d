package postgres

import (
	"context"
	"time"

	"github.com/inkwellhq/inkwell/internal/auth/domain"
)

type securityEventsRepo struct {
	db dbtx
}

func (r *securityEventsRepo) Append(ctx context.Context, ev domain.SecurityEvent) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO security_events (id, user_id, event_type, ip_address, user_agent, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.UserID, ev.EventType, ev.IP, ev.UserAgent, ev.Reason, ev.CreatedAt,
	)
	return err
}

func (r *securityEventsRepo) CountFailuresByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM security_events
		 WHERE ip_address = $1 AND event_type = $2 AND created_at > $3`,
		ip, domain.EventLoginFailure, since,
	).Scan(&count)
	return count, err
}

func (r *securityEventsRepo) CountFailuresByUser(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM security_events
		 WHERE user_id = $1 AND event_type = $2 AND created_at > $3`,
		userID, domain.EventLoginFailure, since,
	).Scan(&count)
	return count, err
}

func (r *securityEventsRepo) DeleteFailures(ctx context.Context, ip string, userID string) error {
	// Scoped to the (ip, account) pair plus anonymous failures from the IP.
	_, err := r.db.Exec(ctx,
		`DELETE FROM security_events
		 WHERE ip_address = $1 AND event_type = $2 AND (user_id = $3 OR user_id IS NULL)`,
		ip, domain.EventLoginFailure, userID,
	)
	return err
}

func (r *securityEventsRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM security_events WHERE created_at < $1`, cutoff)
	return err
}
