package workers

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	apperrors "github.com/open-builders/giveaway-draw/internal/common/errors"
	"github.com/open-builders/giveaway-draw/internal/common/logger"
	di "github.com/open-builders/giveaway-draw/internal/domain/identity"
	dn "github.com/open-builders/giveaway-draw/internal/domain/notification"
	"github.com/open-builders/giveaway-draw/internal/metrics"
	"github.com/open-builders/giveaway-draw/internal/service/notifications"
)

const defaultDispatchBatch = 100

// NotificationSource lists undelivered notifications and flips their flag.
type NotificationSource interface {
	ListUnsent(ctx context.Context, limit int) ([]dn.Notification, error)
	MarkSent(ctx context.Context, id string) error
}

// IdentityLookup resolves a recipient's external id.
type IdentityLookup interface {
	GetByID(ctx context.Context, id int64) (*di.Identity, error)
}

// WinnerFlags records that a winner has been told about their win.
type WinnerFlags interface {
	MarkWinnerNotified(ctx context.Context, giveawayID string, identityID int64) (bool, error)
}

// Dispatcher hands recorded notifications to the delivery stream. Delivery is
// at-least-once: a crash between publish and MarkSent re-sends the message.
type Dispatcher struct {
	source     NotificationSource
	identities IdentityLookup
	winners    WinnerFlags
	pub        notifications.Publisher
	stream     string
	batch      int
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// NewDispatcher builds a dispatcher. winners may be nil, in which case winner
// rows are left unflagged.
func NewDispatcher(source NotificationSource, identities IdentityLookup, winners WinnerFlags, pub notifications.Publisher, stream string, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		source:     source,
		identities: identities,
		winners:    winners,
		pub:        pub,
		stream:     stream,
		batch:      defaultDispatchBatch,
		metrics:    m,
		log:        logger.Component("dispatcher"),
	}
}

// DispatchOnce publishes one batch of unsent notifications and reports how
// many were marked sent. It stops at the first publish failure; notifications
// whose recipient no longer exists are skipped.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	pending, err := d.source.ListUnsent(ctx, d.batch)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, n := range pending {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		u, err := d.identities.GetByID(ctx, n.IdentityID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				d.metrics.Dispatch("skipped")
				d.log.Warn().Str("notification_id", n.ID).Int64("identity_id", n.IdentityID).Msg("recipient not found")
				continue
			}
			d.metrics.Dispatch("failed")
			return sent, err
		}

		values := map[string]interface{}{
			"kind":            "notification",
			"notification_id": n.ID,
			"type":            string(n.Type),
			"external_id":     u.ExternalID,
			"giveaway_id":     n.GiveawayID,
			"text":            n.Message,
		}
		if _, err := d.pub.Publish(ctx, d.stream, values); err != nil {
			d.metrics.Dispatch("failed")
			return sent, err
		}
		if err := d.source.MarkSent(ctx, n.ID); err != nil {
			d.metrics.Dispatch("failed")
			return sent, err
		}
		d.metrics.Dispatch("sent")
		sent++
		d.flagWinner(ctx, n)
	}
	if sent > 0 {
		d.log.Info().Int("sent", sent).Msg("notifications dispatched")
	}
	return sent, nil
}

// flagWinner marks the winner row once its notification has gone out. A
// failure is logged only; the notification itself is already sent.
func (d *Dispatcher) flagWinner(ctx context.Context, n dn.Notification) {
	if d.winners == nil || n.Type != dn.TypeWinner || n.GiveawayID == "" {
		return
	}
	if _, err := d.winners.MarkWinnerNotified(ctx, n.GiveawayID, n.IdentityID); err != nil {
		d.log.Warn().Err(err).Str("giveaway_id", n.GiveawayID).Int64("identity_id", n.IdentityID).Msg("failed to flag winner as notified")
	}
}
