package giveaway

import "time"

// State is the lifecycle classification of a giveaway.
type State string

const (
	StateOpen      State = "open"
	StateEnded     State = "ended"
	StateDrawn     State = "drawn"
	StateAnnounced State = "announced"
)

// Giveaway is the aggregate representing a prize draw created by an identity.
// PrizeAmount is in minor currency units. Open and Ended are derived from the
// clock; Drawn and Announced are persisted flags.
type Giveaway struct {
	ID                string     `json:"id"`
	OwnerID           int64      `json:"owner_id"`
	Name              string     `json:"name"`
	PrizeAmount       int64      `json:"prize_amount_minor"`
	WinnerCount       int        `json:"winner_count"`
	EndsAt            time.Time  `json:"ends_at"`
	ChannelIDs        []int64    `json:"channel_ids"`
	Drawn             bool       `json:"drawn"`
	DrawnAt           *time.Time `json:"drawn_at,omitempty"`
	Announced         bool       `json:"announced"`
	AnnouncedAt       *time.Time `json:"announced_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ParticipantsCount int        `json:"participants_count"`
}

// IsEnded reports whether the end timestamp has been reached.
func (g *Giveaway) IsEnded(now time.Time) bool {
	return !now.Before(g.EndsAt)
}

// State classifies the giveaway at the given instant.
func (g *Giveaway) State(now time.Time) State {
	switch {
	case g.Announced:
		return StateAnnounced
	case g.Drawn:
		return StateDrawn
	case g.IsEnded(now):
		return StateEnded
	default:
		return StateOpen
	}
}

// Entry records one identity's participation in one giveaway.
type Entry struct {
	ID         int64     `json:"id"`
	GiveawayID string    `json:"giveaway_id"`
	IdentityID int64     `json:"identity_id"`
	JoinedAt   time.Time `json:"joined_at"`
}

// Winner is the persisted outcome of a draw for one identity. Position is the
// 1-based draw order; Share is in minor currency units.
type Winner struct {
	GiveawayID string    `json:"giveaway_id"`
	IdentityID int64     `json:"identity_id"`
	Position   int       `json:"position"`
	Share      int64     `json:"share_minor"`
	Notified   bool      `json:"notified"`
	CreatedAt  time.Time `json:"created_at"`
}

// DrawResult is the committed outcome of a draw.
type DrawResult struct {
	GiveawayID string    `json:"giveaway_id"`
	PoolSize   int       `json:"pool_size"`
	Winners    []Winner  `json:"winners"`
	DrawnAt    time.Time `json:"drawn_at"`
}

// TotalShare sums the prize shares of all winners.
func (r *DrawResult) TotalShare() int64 {
	var total int64
	for _, w := range r.Winners {
		total += w.Share
	}
	return total
}
