package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	apperrors "github.com/open-builders/giveaway-draw/internal/common/errors"
	dg "github.com/open-builders/giveaway-draw/internal/domain/giveaway"
)

const giveawayColumns = `
	g.id, g.owner_id, g.name, g.prize_amount, g.winner_count, g.ends_at,
	g.drawn, g.drawn_at, g.announced, g.announced_at, g.created_at, g.updated_at,
	ARRAY(SELECT gc.channel_id FROM giveaway_channels gc WHERE gc.giveaway_id=g.id ORDER BY gc.channel_id),
	(SELECT COUNT(*) FROM giveaway_participants p WHERE p.giveaway_id=g.id)`

// GiveawayRepository persists giveaways and their channel links.
type GiveawayRepository struct {
	db *sql.DB
}

func NewGiveawayRepository(db *sql.DB) *GiveawayRepository { return &GiveawayRepository{db: db} }

// Create inserts the giveaway with its channel links in a single transaction.
func (r *GiveawayRepository) Create(ctx context.Context, g *dg.Giveaway) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewDatabaseError("begin create giveaway", err)
	}
	defer func() { _ = tx.Rollback() }()

	const qGiveaway = `
	INSERT INTO giveaways (id, owner_id, name, prize_amount, winner_count, ends_at, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	if _, err = tx.ExecContext(ctx, qGiveaway,
		g.ID, g.OwnerID, g.Name, g.PrizeAmount, g.WinnerCount, g.EndsAt, g.CreatedAt, g.UpdatedAt,
	); err != nil {
		return apperrors.NewDatabaseError("insert giveaway", err)
	}

	const qChannel = `INSERT INTO giveaway_channels (giveaway_id, channel_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`
	for _, chID := range g.ChannelIDs {
		if _, err = tx.ExecContext(ctx, qChannel, g.ID, chID); err != nil {
			return apperrors.NewDatabaseError("link giveaway channel", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return apperrors.NewDatabaseError("commit create giveaway", err)
	}
	return nil
}

// GetByID returns a giveaway with its channel ids and participant count.
func (r *GiveawayRepository) GetByID(ctx context.Context, id string) (*dg.Giveaway, error) {
	q := `SELECT ` + giveawayColumns + ` FROM giveaways g WHERE g.id=$1`
	g, err := scanGiveaway(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewDatabaseError("get giveaway", err)
	}
	return g, nil
}

// List returns giveaways ordered by created_at desc.
func (r *GiveawayRepository) List(ctx context.Context, limit, offset int) ([]dg.Giveaway, error) {
	limit, offset = normalizePage(limit, offset)
	q := `SELECT ` + giveawayColumns + `
	FROM giveaways g
	ORDER BY g.created_at DESC, g.id
	LIMIT $1 OFFSET $2`
	return r.query(ctx, "list giveaways", q, limit, offset)
}

// ListByOwner returns giveaways for a specific owner ordered by created_at desc.
func (r *GiveawayRepository) ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]dg.Giveaway, error) {
	limit, offset = normalizePage(limit, offset)
	q := `SELECT ` + giveawayColumns + `
	FROM giveaways g WHERE g.owner_id=$1
	ORDER BY g.created_at DESC, g.id
	LIMIT $2 OFFSET $3`
	return r.query(ctx, "list giveaways by owner", q, ownerID, limit, offset)
}

// ListDueForDraw returns undrawn giveaways whose end has been reached, oldest end first.
func (r *GiveawayRepository) ListDueForDraw(ctx context.Context, now time.Time) ([]dg.Giveaway, error) {
	q := `SELECT ` + giveawayColumns + `
	FROM giveaways g
	WHERE NOT g.drawn AND g.ends_at <= $1
	ORDER BY g.ends_at ASC, g.id`
	return r.query(ctx, "list due giveaways", q, now)
}

// ListPendingAnnouncement returns drawn giveaways that have not been announced.
func (r *GiveawayRepository) ListPendingAnnouncement(ctx context.Context) ([]dg.Giveaway, error) {
	q := `SELECT ` + giveawayColumns + `
	FROM giveaways g
	WHERE g.drawn AND NOT g.announced
	ORDER BY g.drawn_at ASC, g.id`
	return r.query(ctx, "list pending announcements", q)
}

// MarkAnnounced flips the announced flag once, only on a drawn giveaway.
func (r *GiveawayRepository) MarkAnnounced(ctx context.Context, id string, at time.Time) (bool, error) {
	const q = `
	UPDATE giveaways SET announced=true, announced_at=$2, updated_at=$2
	WHERE id=$1 AND drawn AND NOT announced`
	res, err := r.db.ExecContext(ctx, q, id, at)
	if err != nil {
		return false, apperrors.NewDatabaseError("mark announced", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// DeleteByOwner removes a giveaway only if the requester is the owner.
// Returns true if a row was deleted, false otherwise.
func (r *GiveawayRepository) DeleteByOwner(ctx context.Context, id string, ownerID int64) (bool, error) {
	const q = `DELETE FROM giveaways WHERE id=$1 AND owner_id=$2`
	res, err := r.db.ExecContext(ctx, q, id, ownerID)
	if err != nil {
		return false, apperrors.NewDatabaseError("delete giveaway", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *GiveawayRepository) query(ctx context.Context, op, q string, args ...interface{}) ([]dg.Giveaway, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError(op, err)
	}
	defer rows.Close()
	out := []dg.Giveaway{}
	for rows.Next() {
		g, err := scanGiveaway(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseError(op, err)
		}
		out = append(out, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError(op, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGiveaway(s rowScanner) (*dg.Giveaway, error) {
	var (
		g           dg.Giveaway
		drawnAt     sql.NullTime
		announcedAt sql.NullTime
		channelIDs  pq.Int64Array
	)
	if err := s.Scan(
		&g.ID, &g.OwnerID, &g.Name, &g.PrizeAmount, &g.WinnerCount, &g.EndsAt,
		&g.Drawn, &drawnAt, &g.Announced, &announcedAt, &g.CreatedAt, &g.UpdatedAt,
		&channelIDs, &g.ParticipantsCount,
	); err != nil {
		return nil, err
	}
	if drawnAt.Valid {
		t := drawnAt.Time
		g.DrawnAt = &t
	}
	if announcedAt.Valid {
		t := announcedAt.Time
		g.AnnouncedAt = &t
	}
	g.ChannelIDs = []int64(channelIDs)
	if g.ChannelIDs == nil {
		g.ChannelIDs = []int64{}
	}
	return &g, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
