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
	"github.com/open-builders/giveaway-draw/internal/utils/random"
)

// Draw selects min(winner_count, pool) distinct winners uniformly at random,
// splits the prize and commits the outcome at most once. A repeated call
// returns the committed result together with an ALREADY_DRAWN error.
func (s *Service) Draw(ctx context.Context, giveawayID string, now time.Time) (*dg.DrawResult, error) {
	g, err := s.Get(ctx, giveawayID)
	if err != nil {
		return nil, err
	}
	if !g.Drawn && !g.IsEnded(now) {
		s.metrics.Draw("not_due")
		return nil, apperrors.NewLifecycleError(apperrors.ErrCodeNotDue, giveawayID, "Giveaway has not ended yet")
	}

	res, err := s.winners.CommitDraw(ctx, giveawayID, now.UTC(), s.selector(g))
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrAlreadyDrawn):
		s.metrics.Draw("already_drawn")
		return res, err
	case errors.Is(err, apperrors.ErrNoParticipants):
		s.metrics.Draw("no_participants")
		return nil, err
	default:
		s.metrics.Draw("error")
		return nil, err
	}
	s.metrics.Draw("drawn")
	log.Info().
		Str("giveaway_id", giveawayID).
		Int("pool", res.PoolSize).
		Int("winners", len(res.Winners)).
		Msg("draw committed")

	s.notifyWinners(ctx, g, res.Winners)
	return res, nil
}

// selector builds the winner-picking step run inside the draw transaction.
func (s *Service) selector(g *dg.Giveaway) dg.SelectFunc {
	return func(pool []dg.Entry) ([]dg.Winner, error) {
		k := g.WinnerCount
		if k > len(pool) {
			k = len(pool)
		}
		chosen, err := random.Sample(s.rng, pool, k)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "winner sampling failed")
		}
		shares := dg.SplitEvenly(g.PrizeAmount, len(chosen))
		winners := make([]dg.Winner, len(chosen))
		for i, e := range chosen {
			winners[i] = dg.Winner{
				GiveawayID: g.ID,
				IdentityID: e.IdentityID,
				Position:   i + 1,
				Share:      shares[i],
			}
		}
		return winners, nil
	}
}

// notifyWinners records one winner notification each. Failures are logged;
// the draw itself is already committed.
func (s *Service) notifyWinners(ctx context.Context, g *dg.Giveaway, winners []dg.Winner) {
	if s.notifier == nil {
		return
	}
	for _, w := range winners {
		msg := notifications.WinnerMessage(g, w.Share, s.scale)
		if _, err := s.notifier.Record(ctx, w.IdentityID, g.ID, dn.TypeWinner, msg); err != nil {
			log.Error().Err(err).Str("giveaway_id", g.ID).Int64("identity_id", w.IdentityID).Msg("failed to record winner notification")
		}
	}
}

// ListWinners returns the committed winners in draw order.
func (s *Service) ListWinners(ctx context.Context, giveawayID string) ([]dg.Winner, error) {
	if _, err := s.Get(ctx, giveawayID); err != nil {
		return nil, err
	}
	return s.winners.ListWinners(ctx, giveawayID)
}

// MarkWinnerNotified flags a winner as told. It reports false when the flag
// was already set or the pair is not a winner.
func (s *Service) MarkWinnerNotified(ctx context.Context, giveawayID string, identityID int64) (bool, error) {
	if err := checkGiveawayID(giveawayID); err != nil {
		return false, err
	}
	return s.winners.MarkWinnerNotified(ctx, giveawayID, identityID)
}
