package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	apperrors "github.com/open-builders/giveaway-draw/internal/common/errors"
	domain "github.com/open-builders/giveaway-draw/internal/domain/channel"
)

// ChannelRepository persists channels registered by identities.
type ChannelRepository struct {
	db *sql.DB
}

func NewChannelRepository(db *sql.DB) *ChannelRepository { return &ChannelRepository{db: db} }

// Create inserts a channel; the partial unique indexes on (owner, handle) and
// (owner, chat_ref) turn a repeat registration into a CONFLICT.
func (r *ChannelRepository) Create(ctx context.Context, c *domain.Channel) error {
	const q = `
	INSERT INTO channels (owner_id, handle, chat_ref, created_at)
	VALUES ($1, NULLIF($2, ''), NULLIF($3, 0), now())
	RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, q, c.OwnerID, c.Handle, c.ChatRef).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("channel", "already registered by this owner").
				WithDetail("address", c.Address())
		}
		return apperrors.NewDatabaseError("create channel", err)
	}
	return nil
}

// ListByOwner returns the owner's channels in registration order.
func (r *ChannelRepository) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Channel, error) {
	const q = `
	SELECT id, owner_id, COALESCE(handle, ''), COALESCE(chat_ref, 0), created_at
	FROM channels WHERE owner_id=$1
	ORDER BY id ASC`
	return r.query(ctx, q, ownerID)
}

// ListByIDs returns the channels among ids that exist.
func (r *ChannelRepository) ListByIDs(ctx context.Context, ids []int64) ([]domain.Channel, error) {
	const q = `
	SELECT id, owner_id, COALESCE(handle, ''), COALESCE(chat_ref, 0), created_at
	FROM channels WHERE id = ANY($1)
	ORDER BY id ASC`
	return r.query(ctx, q, pq.Array(ids))
}

func (r *ChannelRepository) query(ctx context.Context, q string, args ...interface{}) ([]domain.Channel, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list channels", err)
	}
	defer rows.Close()
	out := []domain.Channel{}
	for rows.Next() {
		var c domain.Channel
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Handle, &c.ChatRef, &c.CreatedAt); err != nil {
			return nil, apperrors.NewDatabaseError("scan channel", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list channels", err)
	}
	return out, nil
}
