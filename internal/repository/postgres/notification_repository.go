package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/open-builders/giveaway-draw/internal/common/errors"
	dn "github.com/open-builders/giveaway-draw/internal/domain/notification"
)

const notificationColumns = `id, identity_id, COALESCE(giveaway_id::text, ''), type, message, sent, sent_at, created_at`

// NotificationRepository persists the outbound notification log.
type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create appends a notification, assigning an id when none is set.
func (r *NotificationRepository) Create(ctx context.Context, n *dn.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	const q = `
	INSERT INTO notifications (id, identity_id, giveaway_id, type, message, sent, created_at)
	VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, false, $6)`
	if _, err := r.db.ExecContext(ctx, q, n.ID, n.IdentityID, n.GiveawayID, string(n.Type), n.Message, n.CreatedAt); err != nil {
		return apperrors.NewDatabaseError("create notification", err)
	}
	return nil
}

// ListByIdentity returns the identity's notifications newest first.
func (r *NotificationRepository) ListByIdentity(ctx context.Context, identityID int64, limit int) ([]dn.Notification, error) {
	limit, _ = normalizePage(limit, 0)
	q := `SELECT ` + notificationColumns + `
	FROM notifications WHERE identity_id=$1
	ORDER BY created_at DESC, id
	LIMIT $2`
	return r.query(ctx, "list notifications", q, identityID, limit)
}

// ListUnsent returns undelivered notifications oldest first.
func (r *NotificationRepository) ListUnsent(ctx context.Context, limit int) ([]dn.Notification, error) {
	limit, _ = normalizePage(limit, 0)
	q := `SELECT ` + notificationColumns + `
	FROM notifications WHERE NOT sent
	ORDER BY created_at ASC, id
	LIMIT $1`
	return r.query(ctx, "list unsent notifications", q, limit)
}

// MarkSent flips the sent flag once.
func (r *NotificationRepository) MarkSent(ctx context.Context, id string, at time.Time) (bool, error) {
	const q = `UPDATE notifications SET sent=true, sent_at=$2 WHERE id=$1 AND NOT sent`
	res, err := r.db.ExecContext(ctx, q, id, at)
	if err != nil {
		return false, apperrors.NewDatabaseError("mark notification sent", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *NotificationRepository) query(ctx context.Context, op, q string, args ...interface{}) ([]dn.Notification, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError(op, err)
	}
	defer rows.Close()
	out := []dn.Notification{}
	for rows.Next() {
		var (
			n      dn.Notification
			typ    string
			sentAt sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.IdentityID, &n.GiveawayID, &typ, &n.Message, &n.Sent, &sentAt, &n.CreatedAt); err != nil {
			return nil, apperrors.NewDatabaseError(op, err)
		}
		n.Type = dn.Type(typ)
		if sentAt.Valid {
			t := sentAt.Time
			n.SentAt = &t
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError(op, err)
	}
	return out, nil
}
