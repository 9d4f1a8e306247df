package giveaway

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/open-builders/giveaway-draw/internal/common/errors"
)

// SweepOutcome classifies what a sweep did with one giveaway.
type SweepOutcome string

const (
	OutcomeDrawn          SweepOutcome = "drawn"
	OutcomeAlreadyDrawn   SweepOutcome = "already_drawn"
	OutcomeNoParticipants SweepOutcome = "no_participants"
	OutcomeDrawFailed     SweepOutcome = "draw_failed"
	OutcomeAnnounced      SweepOutcome = "announced"
	OutcomeAnnounceFailed SweepOutcome = "announce_failed"
)

// SweepItem is the per-giveaway outcome of a sweep step.
type SweepItem struct {
	GiveawayID string       `json:"giveaway_id"`
	Outcome    SweepOutcome `json:"outcome"`
	Winners    int          `json:"winners,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// SweepReport collects the outcomes of one sweep run.
type SweepReport struct {
	At    time.Time   `json:"at"`
	Items []SweepItem `json:"items"`
}

// Count returns how many items ended with outcome.
func (r *SweepReport) Count(outcome SweepOutcome) int {
	n := 0
	for _, it := range r.Items {
		if it.Outcome == outcome {
			n++
		}
	}
	return n
}

func (r *SweepReport) add(item SweepItem) {
	r.Items = append(r.Items, item)
}

// Sweep draws every giveaway due at now, then announces every drawn giveaway
// not yet announced, including ones left over from earlier failed runs. A
// failing item never stops the sweep; only failing to list work does.
func (s *Service) Sweep(ctx context.Context, now time.Time) (*SweepReport, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveSweep(time.Since(start)) }()

	report := &SweepReport{At: now.UTC(), Items: []SweepItem{}}

	due, err := s.FindDueForDraw(ctx, now)
	if err != nil {
		return report, err
	}
	for _, g := range due {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		item := SweepItem{GiveawayID: g.ID}
		res, err := s.Draw(ctx, g.ID, now)
		switch {
		case err == nil:
			item.Outcome = OutcomeDrawn
			item.Winners = len(res.Winners)
		case errors.Is(err, apperrors.ErrAlreadyDrawn):
			item.Outcome = OutcomeAlreadyDrawn
		case errors.Is(err, apperrors.ErrNoParticipants):
			item.Outcome = OutcomeNoParticipants
		default:
			item.Outcome = OutcomeDrawFailed
			item.Error = err.Error()
		}
		s.logSweepItem(item, err)
		report.add(item)
	}

	pending, err := s.giveaways.ListPendingAnnouncement(ctx)
	if err != nil {
		return report, err
	}
	for i := range pending {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		g := &pending[i]
		item := SweepItem{GiveawayID: g.ID, Outcome: OutcomeAnnounced}
		err := s.announce(ctx, g.ID, now)
		if err != nil {
			item.Outcome = OutcomeAnnounceFailed
			item.Error = err.Error()
		}
		s.logSweepItem(item, err)
		report.add(item)
	}
	return report, nil
}

func (s *Service) announce(ctx context.Context, id string, now time.Time) error {
	if s.announcer != nil {
		g, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		winners, err := s.winners.ListWinners(ctx, id)
		if err != nil {
			return err
		}
		if err := s.announcer.Announce(ctx, g, winners); err != nil {
			return err
		}
	}
	return s.MarkAnnounced(ctx, id, now)
}

func (s *Service) logSweepItem(item SweepItem, err error) {
	s.metrics.SweepItem(string(item.Outcome))
	switch item.Outcome {
	case OutcomeDrawFailed, OutcomeAnnounceFailed:
		log.Error().Err(err).Str("giveaway_id", item.GiveawayID).Str("outcome", string(item.Outcome)).Msg("sweep item failed")
	default:
		log.Info().Str("giveaway_id", item.GiveawayID).Str("outcome", string(item.Outcome)).Int("winners", item.Winners).Msg("sweep item")
	}
}
