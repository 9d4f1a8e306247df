package identity

import "context"

// Repository defines persistence operations for identities.
// Getters return (nil, nil) when the identity does not exist.
type Repository interface {
	// Upsert inserts by external id or refreshes the display name of the
	// existing row, filling ID and timestamps on u.
	Upsert(ctx context.Context, u *Identity) error
	GetByID(ctx context.Context, id int64) (*Identity, error)
	GetByExternalID(ctx context.Context, externalID string) (*Identity, error)
}
