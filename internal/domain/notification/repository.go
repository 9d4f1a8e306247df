package notification

import (
	"context"
	"time"
)

// Repository defines persistence operations for the notification log.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	// ListByIdentity returns notifications newest first.
	ListByIdentity(ctx context.Context, identityID int64, limit int) ([]Notification, error)
	// ListUnsent returns unsent notifications oldest first.
	ListUnsent(ctx context.Context, limit int) ([]Notification, error)
	// MarkSent flips the sent flag; it reports false when nothing changed.
	MarkSent(ctx context.Context, id string, at time.Time) (bool, error)
}
