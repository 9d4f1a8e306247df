package channel

import "context"

// Repository defines persistence operations for channels.
type Repository interface {
	// Create inserts a channel. A duplicate (owner, handle) or (owner, chat_ref)
	// pair fails with a CONFLICT error.
	Create(ctx context.Context, c *Channel) error
	ListByOwner(ctx context.Context, ownerID int64) ([]Channel, error)
	ListByIDs(ctx context.Context, ids []int64) ([]Channel, error)
}
