package notification

import "time"

// Type tags what happened to the recipient.
type Type string

const (
	TypeParticipant Type = "participant"
	TypeWinner      Type = "winner"
)

// Valid reports whether t is a known notification type.
func (t Type) Valid() bool {
	return t == TypeParticipant || t == TypeWinner
}

// Notification is an append-only outbound message record. Only Sent and
// SentAt ever change, and only from false to true.
type Notification struct {
	ID         string     `json:"id"`
	IdentityID int64      `json:"identity_id"`
	GiveawayID string     `json:"giveaway_id,omitempty"`
	Type       Type       `json:"type"`
	Message    string     `json:"message"`
	Sent       bool       `json:"sent"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
