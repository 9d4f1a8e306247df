package channel

import (
	"fmt"
	"time"
)

// Channel is an announcement target registered by its owning identity.
// At least one of Handle and ChatRef is set.
type Channel struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	Handle    string    `json:"handle,omitempty"`
	ChatRef   int64     `json:"chat_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Address returns a human readable addressing field, handle first.
func (c Channel) Address() string {
	if c.Handle != "" {
		return "@" + c.Handle
	}
	return fmt.Sprintf("%d", c.ChatRef)
}

// Registration is one item of a channel registration request.
type Registration struct {
	Handle  string `json:"handle" validate:"omitempty,channel_handle"`
	ChatRef int64  `json:"chat_ref" validate:"required_without=Handle"`
}

// Result reports the outcome of one item of a batch registration.
type Result struct {
	Registration Registration `json:"registration"`
	Channel      *Channel     `json:"channel,omitempty"`
	Err          error        `json:"-"`
	Error        string       `json:"error,omitempty"`
}
