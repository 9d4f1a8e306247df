package giveaway

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/open-builders/giveaway-draw/internal/common/errors"
	dg "github.com/open-builders/giveaway-draw/internal/domain/giveaway"
	dn "github.com/open-builders/giveaway-draw/internal/domain/notification"
	"github.com/open-builders/giveaway-draw/internal/service/notifications"
)

// Join records identityID as a participant of giveawayID. The storage layer
// enforces both the one-entry rule and the end-time cutoff, so concurrent
// joins and a racing draw cannot slip an entry past either.
func (s *Service) Join(ctx context.Context, identityID int64, giveawayID string, now time.Time) (*dg.Entry, error) {
	g, err := s.Get(ctx, giveawayID)
	if err != nil {
		s.metrics.Join("not_found")
		return nil, err
	}
	u, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		s.metrics.Join("not_found")
		return nil, apperrors.NewNotFoundError("identity", identityID)
	}
	if g.Drawn || g.IsEnded(now) {
		s.metrics.Join("closed")
		return nil, apperrors.NewLifecycleError(apperrors.ErrCodeClosed, giveawayID, "Giveaway is closed for participation")
	}

	e := &dg.Entry{GiveawayID: giveawayID, IdentityID: identityID, JoinedAt: now.UTC()}
	if err := s.participants.AddEntry(ctx, e); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrDuplicate):
			s.metrics.Join("duplicate")
		case errors.Is(err, apperrors.ErrClosed):
			s.metrics.Join("closed")
		default:
			s.metrics.Join("error")
		}
		return nil, err
	}
	s.metrics.Join("ok")

	if s.notifier != nil {
		if _, err := s.notifier.Record(ctx, identityID, giveawayID, dn.TypeParticipant, notifications.ParticipantMessage(g)); err != nil {
			log.Warn().Err(err).Str("giveaway_id", giveawayID).Int64("identity_id", identityID).Msg("failed to record participant notification")
		}
	}
	return e, nil
}

// ListParticipants returns the candidate pool in join order.
func (s *Service) ListParticipants(ctx context.Context, giveawayID string) ([]dg.Entry, error) {
	if _, err := s.Get(ctx, giveawayID); err != nil {
		return nil, err
	}
	return s.participants.ListEntries(ctx, giveawayID)
}
