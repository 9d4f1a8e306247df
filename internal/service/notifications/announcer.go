package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	dc "github.com/open-builders/giveaway-draw/internal/domain/channel"
	dg "github.com/open-builders/giveaway-draw/internal/domain/giveaway"
	di "github.com/open-builders/giveaway-draw/internal/domain/identity"
)

// Publisher appends a message to a stream consumed by the delivery bot.
type Publisher interface {
	Publish(ctx context.Context, stream string, values map[string]interface{}) (string, error)
}

// Announcer posts draw results to the giveaway's channels through the
// delivery stream.
type Announcer struct {
	channels   dc.Repository
	identities di.Repository
	pub        Publisher
	stream     string
	scale      int32
}

func NewAnnouncer(channels dc.Repository, identities di.Repository, pub Publisher, stream string, scale int32) *Announcer {
	return &Announcer{channels: channels, identities: identities, pub: pub, stream: stream, scale: scale}
}

// Announce publishes one announcement per channel. It stops at the first
// publish failure so the caller can retry the whole giveaway later.
func (a *Announcer) Announce(ctx context.Context, g *dg.Giveaway, winners []dg.Winner) error {
	if g == nil {
		return nil
	}
	chs, err := a.channels.ListByIDs(ctx, g.ChannelIDs)
	if err != nil {
		return err
	}
	text := a.buildResultsMessage(ctx, g, winners)
	for _, ch := range chs {
		values := map[string]interface{}{
			"kind":        "announcement",
			"giveaway_id": g.ID,
			"channel_id":  ch.ID,
			"handle":      ch.Handle,
			"chat_ref":    ch.ChatRef,
			"text":        text,
		}
		if _, err := a.pub.Publish(ctx, a.stream, values); err != nil {
			return fmt.Errorf("publish announcement to %s: %w", ch.Address(), err)
		}
	}
	log.Info().Str("giveaway_id", g.ID).Int("channels", len(chs)).Int("winners", len(winners)).Msg("giveaway results announced")
	return nil
}

func (a *Announcer) buildResultsMessage(ctx context.Context, g *dg.Giveaway, winners []dg.Winner) string {
	var b strings.Builder
	b.WriteString("🎉 Giveaway completed!\n\n")
	if g.Name != "" {
		b.WriteString("Title: ")
		b.WriteString(g.Name)
		b.WriteString("\n")
	}
	b.WriteString("Prize pool: ")
	b.WriteString(dg.FormatMinorUnits(g.PrizeAmount, a.scale))
	b.WriteString("\n")
	if len(winners) == 0 {
		b.WriteString("No winners were drawn.")
		return b.String()
	}
	b.WriteString("Winners:\n")
	for _, w := range winners {
		fmt.Fprintf(&b, "%d. %s (%s)\n", w.Position, a.label(ctx, w.IdentityID), dg.FormatMinorUnits(w.Share, a.scale))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Announcer) label(ctx context.Context, identityID int64) string {
	if a.identities != nil {
		if u, err := a.identities.GetByID(ctx, identityID); err == nil && u != nil {
			if u.DisplayName != "" {
				return u.DisplayName
			}
			return u.ExternalID
		}
	}
	return fmt.Sprintf("User %d", identityID)
}

// ParticipantMessage is the text recorded when an identity joins.
func ParticipantMessage(g *dg.Giveaway) string {
	return fmt.Sprintf("You have joined giveaway “%s”. Good luck!", g.Name)
}

// WinnerMessage is the text recorded for each winner of a draw.
func WinnerMessage(g *dg.Giveaway, share int64, scale int32) string {
	return fmt.Sprintf("🎉 You won in “%s”! Your share: %s.", g.Name, dg.FormatMinorUnits(share, scale))
}
