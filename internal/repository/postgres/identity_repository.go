package postgres

import (
	"context"
	"database/sql"
	"errors"

	apperrors "github.com/open-builders/giveaway-draw/internal/common/errors"
	domain "github.com/open-builders/giveaway-draw/internal/domain/identity"
)

// IdentityRepository provides persistence for identities in Postgres.
type IdentityRepository struct {
	db *sql.DB
}

func NewIdentityRepository(db *sql.DB) *IdentityRepository { return &IdentityRepository{db: db} }

// Upsert inserts or refreshes an identity keyed by external id. An empty
// display name keeps the stored one.
func (r *IdentityRepository) Upsert(ctx context.Context, u *domain.Identity) error {
	const q = `
	INSERT INTO identities (external_id, display_name, created_at, updated_at)
	VALUES ($1, $2, now(), now())
	ON CONFLICT (external_id) DO UPDATE SET
		display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), identities.display_name),
		updated_at = now()
	RETURNING id, display_name, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, q, u.ExternalID, u.DisplayName).
		Scan(&u.ID, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return apperrors.NewDatabaseError("upsert identity", err)
	}
	return nil
}

// GetByID returns an identity by internal id.
func (r *IdentityRepository) GetByID(ctx context.Context, id int64) (*domain.Identity, error) {
	const q = `SELECT id, external_id, display_name, created_at, updated_at FROM identities WHERE id=$1`
	return r.scanOne(r.db.QueryRowContext(ctx, q, id))
}

// GetByExternalID returns an identity by messaging-platform id.
func (r *IdentityRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Identity, error) {
	const q = `SELECT id, external_id, display_name, created_at, updated_at FROM identities WHERE external_id=$1`
	return r.scanOne(r.db.QueryRowContext(ctx, q, externalID))
}

func (r *IdentityRepository) scanOne(row *sql.Row) (*domain.Identity, error) {
	var u domain.Identity
	if err := row.Scan(&u.ID, &u.ExternalID, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewDatabaseError("get identity", err)
	}
	return &u, nil
}
