package workers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	go_redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/open-builders/giveaway-draw/internal/common/logger"
	dc "github.com/open-builders/giveaway-draw/internal/domain/channel"
	dg "github.com/open-builders/giveaway-draw/internal/domain/giveaway"
	di "github.com/open-builders/giveaway-draw/internal/domain/identity"
	"github.com/open-builders/giveaway-draw/internal/metrics"
	"github.com/open-builders/giveaway-draw/internal/platform/redis"
)

const (
	consumerGroup = "giveaway_draw_consumers"

	EventJoinGiveaway    = "join_giveaway"
	EventRegisterChannel = "register_channel"
)

// Registry resolves bot users and registers their channels.
type Registry interface {
	Upsert(ctx context.Context, externalID, displayName string) (*di.Identity, error)
	RegisterChannel(ctx context.Context, ownerID int64, reg dc.Registration) (*dc.Channel, error)
}

// Joiner adds identities to giveaways.
type Joiner interface {
	Join(ctx context.Context, identityID int64, giveawayID string, now time.Time) (*dg.Entry, error)
}

// BotEventsConsumer reads commands published by the bot front end from a
// Redis stream and applies them. Every message is acked, including failed
// ones; the failure is logged and counted.
type BotEventsConsumer struct {
	rdb      *redis.Client
	stream   string
	consumer string
	registry Registry
	joiner   Joiner
	metrics  *metrics.Metrics
	now      func() time.Time
	log      zerolog.Logger
}

func NewBotEventsConsumer(rdb *redis.Client, stream, consumer string, registry Registry, joiner Joiner, m *metrics.Metrics) *BotEventsConsumer {
	return &BotEventsConsumer{
		rdb:      rdb,
		stream:   stream,
		consumer: consumer,
		registry: registry,
		joiner:   joiner,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.Component("bot_events"),
	}
}

// Start listens to the stream until ctx is cancelled.
func (w *BotEventsConsumer) Start(ctx context.Context) {
	if err := w.rdb.EnsureGroup(ctx, w.stream, consumerGroup); err != nil {
		w.log.Error().Err(err).Str("stream", w.stream).Msg("error creating consumer group")
	}

	w.log.Info().Str("stream", w.stream).Msg("starting bot events consumer")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping bot events consumer")
			return
		default:
			entries, err := w.rdb.XReadGroup(ctx, &go_redis.XReadGroupArgs{
				Group:    consumerGroup,
				Consumer: w.consumer,
				Streams:  []string{w.stream, ">"},
				Count:    10,
				Block:    5 * time.Second,
			}).Result()
			if err != nil {
				if !errors.Is(err, go_redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("error reading from stream")
					time.Sleep(time.Second)
				}
				continue
			}

			for _, stream := range entries {
				for _, msg := range stream.Messages {
					w.process(ctx, msg)
					if err := w.rdb.XAck(ctx, w.stream, consumerGroup, msg.ID).Err(); err != nil {
						w.log.Error().Err(err).Str("message_id", msg.ID).Msg("error acking message")
					}
				}
			}
		}
	}
}

func (w *BotEventsConsumer) process(ctx context.Context, msg go_redis.XMessage) {
	eventType := stringValue(msg.Values, "type")
	err := w.Handle(ctx, msg.Values)
	outcome := "ok"
	if err != nil {
		outcome = "failed"
		w.log.Warn().Err(err).Str("message_id", msg.ID).Str("type", eventType).Msg("bot event rejected")
	}
	w.metrics.BotEvent(eventType, outcome)
}

// Handle applies a single event. Unknown event types are ignored.
func (w *BotEventsConsumer) Handle(ctx context.Context, values map[string]interface{}) error {
	switch stringValue(values, "type") {
	case EventJoinGiveaway:
		return w.handleJoin(ctx, values)
	case EventRegisterChannel:
		return w.handleRegisterChannel(ctx, values)
	default:
		return nil
	}
}

func (w *BotEventsConsumer) handleJoin(ctx context.Context, values map[string]interface{}) error {
	giveawayID := stringValue(values, "giveaway_id")
	if giveawayID == "" {
		return fmt.Errorf("join_giveaway: missing giveaway_id")
	}
	u, err := w.registry.Upsert(ctx, stringValue(values, "external_id"), stringValue(values, "display_name"))
	if err != nil {
		return fmt.Errorf("join_giveaway: %w", err)
	}
	if _, err := w.joiner.Join(ctx, u.ID, giveawayID, w.now()); err != nil {
		return fmt.Errorf("join_giveaway: %w", err)
	}
	w.log.Debug().Str("giveaway_id", giveawayID).Int64("identity_id", u.ID).Msg("joined from bot event")
	return nil
}

func (w *BotEventsConsumer) handleRegisterChannel(ctx context.Context, values map[string]interface{}) error {
	reg := dc.Registration{Handle: stringValue(values, "handle")}
	if raw := stringValue(values, "chat_ref"); raw != "" {
		ref, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("register_channel: invalid chat_ref %q", raw)
		}
		reg.ChatRef = ref
	}
	u, err := w.registry.Upsert(ctx, stringValue(values, "external_id"), stringValue(values, "display_name"))
	if err != nil {
		return fmt.Errorf("register_channel: %w", err)
	}
	ch, err := w.registry.RegisterChannel(ctx, u.ID, reg)
	if err != nil {
		return fmt.Errorf("register_channel: %w", err)
	}
	w.log.Debug().Int64("channel_id", ch.ID).Int64("owner_id", u.ID).Msg("channel registered from bot event")
	return nil
}

// stringValue reads a stream field; go-redis delivers values as strings.
func stringValue(values map[string]interface{}, key string) string {
	switch v := values[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
