package giveaway

import (
	"context"
	"time"
)

// Repository defines persistence operations for the Giveaway aggregate.
// GetByID returns (nil, nil) when the giveaway does not exist.
type Repository interface {
	Create(ctx context.Context, g *Giveaway) error
	GetByID(ctx context.Context, id string) (*Giveaway, error)
	List(ctx context.Context, limit, offset int) ([]Giveaway, error)
	ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]Giveaway, error)
	// ListDueForDraw returns giveaways ended at now and not yet drawn.
	ListDueForDraw(ctx context.Context, now time.Time) ([]Giveaway, error)
	// ListPendingAnnouncement returns drawn giveaways not yet announced.
	ListPendingAnnouncement(ctx context.Context) ([]Giveaway, error)
	// MarkAnnounced sets the announced flag on a drawn giveaway; it reports
	// false when the flag was already set or the giveaway is not drawn.
	MarkAnnounced(ctx context.Context, id string, at time.Time) (bool, error)
	DeleteByOwner(ctx context.Context, id string, ownerID int64) (bool, error)
}

// ParticipantRepository persists participation entries. Uniqueness of
// (giveaway, identity) is enforced by storage, and AddEntry fails with a
// DUPLICATE error when violated.
type ParticipantRepository interface {
	// AddEntry inserts e only while the giveaway is undrawn and e.JoinedAt is
	// before its end; otherwise it fails with a CLOSED error.
	AddEntry(ctx context.Context, e *Entry) error
	// ListEntries returns the pool ordered by join time then id.
	ListEntries(ctx context.Context, giveawayID string) ([]Entry, error)
}

// SelectFunc picks winners from a non-empty candidate pool.
type SelectFunc func(pool []Entry) ([]Winner, error)

// WinnerRepository commits and reads draw outcomes.
type WinnerRepository interface {
	// CommitDraw serializes on the giveaway, loads its pool, calls pick, and
	// stores the winners together with the drawn flag atomically. An already
	// drawn giveaway yields the stored result and an ALREADY_DRAWN error; an
	// empty pool yields NO_PARTICIPANTS with nothing written.
	CommitDraw(ctx context.Context, giveawayID string, at time.Time, pick SelectFunc) (*DrawResult, error)
	ListWinners(ctx context.Context, giveawayID string) ([]Winner, error)
	MarkWinnerNotified(ctx context.Context, giveawayID string, identityID int64) (bool, error)
}
