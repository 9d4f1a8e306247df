package identity

import "time"

// Identity is an external messaging-platform user mirrored locally.
// ExternalID is immutable once created; DisplayName follows the latest contact.
type Identity struct {
	ID          int64     `json:"id"`
	ExternalID  string    `json:"external_id"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
