package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperrors "github.com/open-builders/giveaway-draw/internal/common/errors"
	dg "github.com/open-builders/giveaway-draw/internal/domain/giveaway"
)

// WinnerRepository commits draw outcomes and reads them back.
type WinnerRepository struct {
	db *sql.DB
}

func NewWinnerRepository(db *sql.DB) *WinnerRepository { return &WinnerRepository{db: db} }

// CommitDraw locks the giveaway row, loads the pool, lets pick choose the
// winners and stores them together with the drawn flag. Concurrent callers
// queue on the row lock; all but the first see the stored result.
func (r *WinnerRepository) CommitDraw(ctx context.Context, giveawayID string, at time.Time, pick dg.SelectFunc) (*dg.DrawResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewDatabaseError("begin draw", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Lock giveaway row to prevent concurrent draws and late joins
	var (
		drawn   bool
		drawnAt sql.NullTime
		endsAt  time.Time
	)
	err = tx.QueryRowContext(ctx,
		`SELECT drawn, drawn_at, ends_at FROM giveaways WHERE id=$1 FOR UPDATE`, giveawayID,
	).Scan(&drawn, &drawnAt, &endsAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("giveaway", giveawayID)
		}
		return nil, apperrors.NewDatabaseError("lock giveaway", err)
	}

	if drawn {
		res, err := r.storedResult(ctx, tx, giveawayID, drawnAt.Time)
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, apperrors.NewDatabaseError("commit draw replay", err)
		}
		return res, apperrors.NewLifecycleError(apperrors.ErrCodeAlreadyDrawn, giveawayID, "Giveaway has already been drawn")
	}
	if at.Before(endsAt) {
		return nil, apperrors.NewLifecycleError(apperrors.ErrCodeNotDue, giveawayID, "Giveaway has not ended yet")
	}

	pool, err := listEntries(ctx, tx, giveawayID)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, apperrors.NewLifecycleError(apperrors.ErrCodeNoParticipants, giveawayID, "Giveaway has no participants")
	}

	winners, err := pick(pool)
	if err != nil {
		return nil, err
	}

	const qWinner = `
	INSERT INTO giveaway_winners (giveaway_id, identity_id, position, share, created_at)
	VALUES ($1,$2,$3,$4,$5)`
	for i := range winners {
		w := &winners[i]
		w.GiveawayID = giveawayID
		w.CreatedAt = at
		if _, err = tx.ExecContext(ctx, qWinner, giveawayID, w.IdentityID, w.Position, w.Share, at); err != nil {
			return nil, apperrors.NewDatabaseError("insert winner", err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE giveaways SET drawn=true, drawn_at=$2, updated_at=$2 WHERE id=$1 AND NOT drawn`, giveawayID, at)
	if err != nil {
		return nil, apperrors.NewDatabaseError("mark drawn", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return nil, apperrors.NewLifecycleError(apperrors.ErrCodeAlreadyDrawn, giveawayID, "Giveaway has already been drawn")
	}

	if err = tx.Commit(); err != nil {
		return nil, apperrors.NewDatabaseError("commit draw", err)
	}
	return &dg.DrawResult{
		GiveawayID: giveawayID,
		PoolSize:   len(pool),
		Winners:    winners,
		DrawnAt:    at,
	}, nil
}

func (r *WinnerRepository) storedResult(ctx context.Context, tx *sql.Tx, giveawayID string, drawnAt time.Time) (*dg.DrawResult, error) {
	var poolSize int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM giveaway_participants WHERE giveaway_id=$1`, giveawayID,
	).Scan(&poolSize); err != nil {
		return nil, apperrors.NewDatabaseError("count entries", err)
	}
	winners, err := listWinners(ctx, tx, giveawayID)
	if err != nil {
		return nil, err
	}
	return &dg.DrawResult{
		GiveawayID: giveawayID,
		PoolSize:   poolSize,
		Winners:    winners,
		DrawnAt:    drawnAt,
	}, nil
}

// ListWinners returns the stored winners in draw order.
func (r *WinnerRepository) ListWinners(ctx context.Context, giveawayID string) ([]dg.Winner, error) {
	return listWinners(ctx, r.db, giveawayID)
}

// MarkWinnerNotified flags the winner as notified; false when already set or absent.
func (r *WinnerRepository) MarkWinnerNotified(ctx context.Context, giveawayID string, identityID int64) (bool, error) {
	const q = `
	UPDATE giveaway_winners SET notified=true
	WHERE giveaway_id=$1 AND identity_id=$2 AND NOT notified`
	res, err := r.db.ExecContext(ctx, q, giveawayID, identityID)
	if err != nil {
		return false, apperrors.NewDatabaseError("mark winner notified", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func listWinners(ctx context.Context, q queryer, giveawayID string) ([]dg.Winner, error) {
	const stmt = `
	SELECT giveaway_id, identity_id, position, share, notified, created_at
	FROM giveaway_winners WHERE giveaway_id=$1
	ORDER BY position ASC`
	rows, err := q.QueryContext(ctx, stmt, giveawayID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list winners", err)
	}
	defer rows.Close()
	out := []dg.Winner{}
	for rows.Next() {
		var w dg.Winner
		if err := rows.Scan(&w.GiveawayID, &w.IdentityID, &w.Position, &w.Share, &w.Notified, &w.CreatedAt); err != nil {
			return nil, apperrors.NewDatabaseError("scan winner", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list winners", err)
	}
	return out, nil
}
