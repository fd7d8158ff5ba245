// Package audit persists a durable, TTL-independent record of every
// dead-lettered delivery (SPEC_FULL.md §2/§4.9), adapted from the teacher's
// internal/repository/notification (dbpg.DB, QueryRowContext/ExecContext,
// sentinel not-found error) — this is the home found for the teacher's
// Postgres/dbpg/lib/pq stack, which spec.md's pure Redis/bus pipeline has
// no other use for.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/notifyhub/internal/model"
)

// ErrNotFound is returned by Get when no audit row exists for a
// notification id.
var ErrNotFound = errors.New("audit: entry not found")

// Repository persists FailedRecords to Postgres through the teacher's dbpg
// wrapper.
type Repository struct {
	db *dbpg.DB
}

// NewRepository builds a Repository over an already-connected dbpg.DB,
// constructed the same way the teacher's main.go builds one.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// Record inserts one append-only row for a dead-lettered delivery.
func (r *Repository) Record(ctx context.Context, rec model.FailedRecord) error {
	query := `
		INSERT INTO delivery_audit (
			notification_id, request_id, channel, error, attempts, failed_at
		) VALUES ($1, $2, $3, $4, $5, $6);
	`

	_, err := r.db.ExecContext(
		ctx, query,
		rec.NotificationID, rec.RequestID, rec.NotificationType, rec.Error, rec.Attempts, rec.FailedAt,
	)
	if err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}

	return nil
}

// AuditEntry is one row of the delivery_audit table.
type AuditEntry struct {
	NotificationID string
	RequestID      string
	Channel        string
	Error          string
	Attempts       int
	FailedAt       string
}

// Get retrieves the audit row for a notification id, for operator lookups
// after the StatusStore's TTL has expired.
func (r *Repository) Get(ctx context.Context, notificationID string) (AuditEntry, error) {
	query := `
		SELECT notification_id, request_id, channel, error, attempts, failed_at
		FROM delivery_audit
		WHERE notification_id = $1;
	`

	var e AuditEntry
	err := r.db.Master.QueryRowContext(ctx, query, notificationID).Scan(
		&e.NotificationID, &e.RequestID, &e.Channel, &e.Error, &e.Attempts, &e.FailedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AuditEntry{}, ErrNotFound
		}
		return AuditEntry{}, fmt.Errorf("get audit entry: %w", err)
	}

	return e, nil
}
