package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/open-builders/giveaway-draw/internal/common/errors"
	"github.com/open-builders/giveaway-draw/internal/common/validation"
	dn "github.com/open-builders/giveaway-draw/internal/domain/notification"
)

const defaultListLimit = 50

// Service is the notification sink. Delivery is performed elsewhere; the
// sink only records messages and tracks their sent flag.
type Service struct {
	repo dn.Repository
	now  func() time.Time
}

func NewService(repo dn.Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

type recordInput struct {
	IdentityID int64  `json:"identity_id" validate:"gt=0"`
	GiveawayID string `json:"giveaway_id" validate:"omitempty,uuid"`
	Type       string `json:"type" validate:"oneof=participant winner"`
	Message    string `json:"message" validate:"notblank,max=4096"`
}

// Record appends a notification for identityID. giveawayID may be empty.
func (s *Service) Record(ctx context.Context, identityID int64, giveawayID string, typ dn.Type, message string) (*dn.Notification, error) {
	in := recordInput{IdentityID: identityID, GiveawayID: giveawayID, Type: string(typ), Message: strings.TrimSpace(message)}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	n := &dn.Notification{
		IdentityID: identityID,
		GiveawayID: giveawayID,
		Type:       typ,
		Message:    in.Message,
		CreatedAt:  s.now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// ListFor returns the identity's notifications newest first.
func (s *Service) ListFor(ctx context.Context, identityID int64, limit int) ([]dn.Notification, error) {
	if identityID <= 0 {
		return nil, apperrors.NewValidationError("identity_id", "must be greater than 0")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.ListByIdentity(ctx, identityID, limit)
}

// ListUnsent returns undelivered notifications oldest first.
func (s *Service) ListUnsent(ctx context.Context, limit int) ([]dn.Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.ListUnsent(ctx, limit)
}

// MarkSent flips the sent flag. Already sent or unknown ids are a no-op;
// only storage failures are returned.
func (s *Service) MarkSent(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	_, err := s.repo.MarkSent(ctx, id, s.now())
	return err
}
