package postgres

import (
	"context"
	"database/sql"
	"errors"

	apperrors "github.com/open-builders/giveaway-draw/internal/common/errors"
	dg "github.com/open-builders/giveaway-draw/internal/domain/giveaway"
)

// ParticipantRepository persists participation entries.
type ParticipantRepository struct {
	db *sql.DB
}

func NewParticipantRepository(db *sql.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// AddEntry inserts the entry while the giveaway is still open. The FOR SHARE
// lock waits out a concurrent draw and rechecks the row it committed, so no
// entry lands after the winners are chosen.
func (r *ParticipantRepository) AddEntry(ctx context.Context, e *dg.Entry) error {
	const q = `
	INSERT INTO giveaway_participants (giveaway_id, identity_id, joined_at)
	SELECT $1, $2, $3
	WHERE EXISTS (
		SELECT 1 FROM giveaways g
		WHERE g.id=$1 AND NOT g.drawn AND g.ends_at > $3
		FOR SHARE
	)
	RETURNING id, joined_at`
	err := r.db.QueryRowContext(ctx, q, e.GiveawayID, e.IdentityID, e.JoinedAt).Scan(&e.ID, &e.JoinedAt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return apperrors.NewLifecycleError(apperrors.ErrCodeClosed, e.GiveawayID, "Giveaway is closed for participation")
	case isUniqueViolation(err, "giveaway_participants_uq"):
		return apperrors.NewDuplicateError(e.GiveawayID, e.IdentityID)
	default:
		return apperrors.NewDatabaseError("add entry", err)
	}
}

// ListEntries returns the pool ordered by join time then id.
func (r *ParticipantRepository) ListEntries(ctx context.Context, giveawayID string) ([]dg.Entry, error) {
	return listEntries(ctx, r.db, giveawayID)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func listEntries(ctx context.Context, q queryer, giveawayID string) ([]dg.Entry, error) {
	const stmt = `
	SELECT id, giveaway_id, identity_id, joined_at
	FROM giveaway_participants WHERE giveaway_id=$1
	ORDER BY joined_at ASC, id ASC`
	rows, err := q.QueryContext(ctx, stmt, giveawayID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list entries", err)
	}
	defer rows.Close()
	out := []dg.Entry{}
	for rows.Next() {
		var e dg.Entry
		if err := rows.Scan(&e.ID, &e.GiveawayID, &e.IdentityID, &e.JoinedAt); err != nil {
			return nil, apperrors.NewDatabaseError("scan entry", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list entries", err)
	}
	return out, nil
}
