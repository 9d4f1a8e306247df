package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/open-builders/giveaway-draw/internal/common/errors"
	"github.com/open-builders/giveaway-draw/internal/common/validation"
	dc "github.com/open-builders/giveaway-draw/internal/domain/channel"
	di "github.com/open-builders/giveaway-draw/internal/domain/identity"
)

// Cache is the read-through cache used for identity lookups. A miss is
// reported as nil, nil.
type Cache interface {
	GetByID(ctx context.Context, id int64) (*di.Identity, error)
	GetByExternalID(ctx context.Context, externalID string) (*di.Identity, error)
	Set(ctx context.Context, u *di.Identity) error
}

// Service is the identity and channel registry.
type Service struct {
	identities di.Repository
	channels   dc.Repository
	cache      Cache
}

// NewService builds the registry. cache may be nil.
func NewService(identities di.Repository, channels dc.Repository, cache Cache) *Service {
	return &Service{identities: identities, channels: channels, cache: cache}
}

type upsertInput struct {
	ExternalID  string `json:"external_id" validate:"notblank,max=64"`
	DisplayName string `json:"display_name" validate:"max=128"`
}

// Upsert returns the identity for externalID, creating it on first contact
// and refreshing the display name otherwise.
func (s *Service) Upsert(ctx context.Context, externalID, displayName string) (*di.Identity, error) {
	in := upsertInput{
		ExternalID:  strings.TrimSpace(externalID),
		DisplayName: strings.TrimSpace(displayName),
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	u := &di.Identity{ExternalID: in.ExternalID, DisplayName: in.DisplayName}
	if err := s.identities.Upsert(ctx, u); err != nil {
		return nil, err
	}
	s.remember(ctx, u)
	return u, nil
}

// Resolve returns the caller for externalID. It serves from the cache or the
// store and writes only when the identity is new or displayName changed.
func (s *Service) Resolve(ctx context.Context, externalID, displayName string) (*di.Identity, error) {
	displayName = strings.TrimSpace(displayName)
	u, err := s.GetByExternalID(ctx, externalID)
	switch {
	case err == nil:
		if displayName == "" || displayName == u.DisplayName {
			return u, nil
		}
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}
	return s.Upsert(ctx, externalID, displayName)
}

// GetByID returns the identity or NOT_FOUND.
func (s *Service) GetByID(ctx context.Context, id int64) (*di.Identity, error) {
	if s.cache != nil {
		u, err := s.cache.GetByID(ctx, id)
		if err != nil {
			log.Warn().Err(err).Int64("identity_id", id).Msg("identity cache read failed")
		} else if u != nil {
			return u, nil
		}
	}
	u, err := s.identities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperrors.NewNotFoundError("identity", id)
	}
	s.remember(ctx, u)
	return u, nil
}

// GetByExternalID returns the identity or NOT_FOUND.
func (s *Service) GetByExternalID(ctx context.Context, externalID string) (*di.Identity, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, apperrors.NewValidationError("external_id", "is required")
	}
	if s.cache != nil {
		u, err := s.cache.GetByExternalID(ctx, externalID)
		if err != nil {
			log.Warn().Err(err).Str("external_id", externalID).Msg("identity cache read failed")
		} else if u != nil {
			return u, nil
		}
	}
	u, err := s.identities.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperrors.NewNotFoundError("identity", externalID)
	}
	s.remember(ctx, u)
	return u, nil
}

func (s *Service) remember(ctx context.Context, u *di.Identity) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, u); err != nil {
		log.Warn().Err(err).Int64("identity_id", u.ID).Msg("identity cache set failed")
	}
}

// RegisterChannel records a channel for ownerID. Admin rights on the channel
// are assumed to have been verified by the caller.
func (s *Service) RegisterChannel(ctx context.Context, ownerID int64, reg dc.Registration) (*dc.Channel, error) {
	if _, err := s.GetByID(ctx, ownerID); err != nil {
		return nil, err
	}
	return s.register(ctx, ownerID, reg)
}

// RegisterChannels registers each item independently and reports per-item
// outcomes. Only a missing owner or an empty batch fails the whole call.
func (s *Service) RegisterChannels(ctx context.Context, ownerID int64, regs []dc.Registration) ([]dc.Result, error) {
	if len(regs) == 0 {
		return nil, apperrors.NewValidationError("channels", "is required")
	}
	if _, err := s.GetByID(ctx, ownerID); err != nil {
		return nil, err
	}
	results := make([]dc.Result, 0, len(regs))
	for _, reg := range regs {
		ch, err := s.register(ctx, ownerID, reg)
		res := dc.Result{Registration: reg, Channel: ch, Err: err}
		if err != nil {
			res.Error = err.Error()
			if appErr, ok := apperrors.AsAppError(err); ok {
				res.Error = appErr.Message
			}
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Service) register(ctx context.Context, ownerID int64, reg dc.Registration) (*dc.Channel, error) {
	reg.Handle = validation.NormalizeChannelHandle(reg.Handle)
	if err := validation.Struct(reg); err != nil {
		return nil, err
	}
	ch := &dc.Channel{OwnerID: ownerID, Handle: reg.Handle, ChatRef: reg.ChatRef}
	if err := s.channels.Create(ctx, ch); err != nil {
		return nil, err
	}
	log.Info().Int64("owner_id", ownerID).Int64("channel_id", ch.ID).Str("address", ch.Address()).Msg("channel registered")
	return ch, nil
}

// ListChannels returns the owner's channels; no channels is an empty slice.
func (s *Service) ListChannels(ctx context.Context, ownerID int64) ([]dc.Channel, error) {
	out, err := s.channels.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []dc.Channel{}
	}
	return out, nil
}
