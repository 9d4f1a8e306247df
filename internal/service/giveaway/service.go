package giveaway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	apperrors "github.com/open-builders/giveaway-draw/internal/common/errors"
	"github.com/open-builders/giveaway-draw/internal/common/validation"
	dc "github.com/open-builders/giveaway-draw/internal/domain/channel"
	dg "github.com/open-builders/giveaway-draw/internal/domain/giveaway"
	di "github.com/open-builders/giveaway-draw/internal/domain/identity"
	dn "github.com/open-builders/giveaway-draw/internal/domain/notification"
	"github.com/open-builders/giveaway-draw/internal/metrics"
	"github.com/open-builders/giveaway-draw/internal/utils/random"
)

// Notifier records user-facing events for later delivery.
type Notifier interface {
	Record(ctx context.Context, identityID int64, giveawayID string, typ dn.Type, message string) (*dn.Notification, error)
}

// Announcer publishes a drawn giveaway's results to its channels.
type Announcer interface {
	Announce(ctx context.Context, g *dg.Giveaway, winners []dg.Winner) error
}

// Deps are the collaborators the service is built on.
type Deps struct {
	Giveaways    dg.Repository
	Participants dg.ParticipantRepository
	Winners      dg.WinnerRepository
	Channels     dc.Repository
	Identities   di.Repository
	Notifier     Notifier
}

// Option customizes a Service.
type Option func(*Service)

// WithRandom sets the randomness source used by draws.
func WithRandom(src random.Source) Option { return func(s *Service) { s.rng = src } }

// WithCurrencyScale sets the number of fractional digits of prize amounts.
func WithCurrencyScale(scale int32) Option { return func(s *Service) { s.scale = scale } }

// WithAnnouncer sets the announcer used by Sweep.
func WithAnnouncer(a Announcer) Option { return func(s *Service) { s.announcer = a } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// Service contains business rules for the giveaway lifecycle, the
// participation ledger and winner selection.
type Service struct {
	giveaways    dg.Repository
	participants dg.ParticipantRepository
	winners      dg.WinnerRepository
	channels     dc.Repository
	identities   di.Repository
	notifier     Notifier
	announcer    Announcer
	metrics      *metrics.Metrics
	rng          random.Source
	scale        int32
}

func NewService(d Deps, opts ...Option) *Service {
	s := &Service{
		giveaways:    d.Giveaways,
		participants: d.Participants,
		winners:      d.Winners,
		channels:     d.Channels,
		identities:   d.Identities,
		notifier:     d.Notifier,
		rng:          random.CryptoSource{},
		scale:        2,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput is the typed request for creating a giveaway. EndsAt accepts
// RFC 3339 or a naive timestamp, which is read as UTC.
type CreateInput struct {
	OwnerID     int64           `json:"owner_id" validate:"gt=0"`
	Name        string          `json:"name" validate:"notblank,max=200"`
	PrizeAmount decimal.Decimal `json:"prize_amount"`
	WinnerCount int             `json:"winner_count" validate:"gt=0"`
	EndsAt      string          `json:"ends_at" validate:"notblank"`
	ChannelIDs  []int64         `json:"channel_ids" validate:"required,min=1,dive,gt=0"`
}

// Create validates and persists a new giveaway.
func (s *Service) Create(ctx context.Context, in CreateInput, now time.Time) (*dg.Giveaway, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if !in.PrizeAmount.IsPositive() {
		return nil, apperrors.NewValidationError("prize_amount", "must be greater than 0")
	}
	prize, err := dg.ToMinorUnits(in.PrizeAmount, s.scale)
	if err != nil {
		return nil, apperrors.NewValidationError("prize_amount", err.Error())
	}
	endsAt, err := ParseTimestamp(in.EndsAt)
	if err != nil {
		return nil, apperrors.NewValidationError("ends_at", err.Error())
	}
	if !endsAt.After(now) {
		return nil, apperrors.NewValidationError("ends_at", "must be in the future")
	}

	owner, err := s.identities.GetByID(ctx, in.OwnerID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, apperrors.NewNotFoundError("identity", in.OwnerID)
	}
	channelIDs, err := s.ownedChannels(ctx, in.OwnerID, in.ChannelIDs)
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	g := &dg.Giveaway{
		ID:          uuid.NewString(),
		OwnerID:     in.OwnerID,
		Name:        in.Name,
		PrizeAmount: prize,
		WinnerCount: in.WinnerCount,
		EndsAt:      endsAt,
		ChannelIDs:  channelIDs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.giveaways.Create(ctx, g); err != nil {
		return nil, err
	}
	log.Info().
		Str("giveaway_id", g.ID).
		Int64("owner_id", g.OwnerID).
		Int("winner_count", g.WinnerCount).
		Time("ends_at", g.EndsAt).
		Msg("giveaway created")
	return g, nil
}

// ownedChannels de-duplicates ids and checks each exists and belongs to ownerID.
func (s *Service) ownedChannels(ctx context.Context, ownerID int64, ids []int64) ([]int64, error) {
	seen := make(map[int64]struct{}, len(ids))
	uniq := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	found, err := s.channels.ListByIDs(ctx, uniq)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]dc.Channel, len(found))
	for _, ch := range found {
		byID[ch.ID] = ch
	}
	for _, id := range uniq {
		ch, ok := byID[id]
		if !ok {
			return nil, apperrors.NewNotFoundError("channel", id)
		}
		if ch.OwnerID != ownerID {
			return nil, apperrors.NewForbiddenError(fmt.Sprintf("channel %d is not owned by the requester", id))
		}
	}
	return uniq, nil
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseTimestamp parses an RFC 3339 or naive timestamp and returns it in UTC.
// Naive timestamps are read as UTC.
func ParseTimestamp(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", v)
}

// checkGiveawayID rejects ids that cannot name a giveaway. Anything that is
// not a uuid is NOT_FOUND and never reaches storage.
func checkGiveawayID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.NewValidationError("id", "is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewNotFoundError("giveaway", id)
	}
	return nil
}

// Get returns the giveaway or NOT_FOUND.
func (s *Service) Get(ctx context.Context, id string) (*dg.Giveaway, error) {
	if err := checkGiveawayID(id); err != nil {
		return nil, err
	}
	g, err := s.giveaways.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperrors.NewNotFoundError("giveaway", id)
	}
	return g, nil
}

// List returns giveaways newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]dg.Giveaway, error) {
	return s.giveaways.List(ctx, limit, offset)
}

// ListByOwner returns the owner's giveaways newest first.
func (s *Service) ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]dg.Giveaway, error) {
	if ownerID <= 0 {
		return nil, apperrors.NewValidationError("owner_id", "must be greater than 0")
	}
	return s.giveaways.ListByOwner(ctx, ownerID, limit, offset)
}

// Delete enforces ownership: only the owner can delete, atomically.
// Entries, winners and channel links go with it.
func (s *Service) Delete(ctx context.Context, id string, requesterID int64) error {
	if err := checkGiveawayID(id); err != nil {
		return err
	}
	deleted, err := s.giveaways.DeleteByOwner(ctx, id, requesterID)
	if err != nil {
		return err
	}
	if deleted {
		log.Info().Str("giveaway_id", id).Int64("owner_id", requesterID).Msg("giveaway deleted")
		return nil
	}
	g, err := s.giveaways.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if g == nil {
		return apperrors.NewNotFoundError("giveaway", id)
	}
	return apperrors.NewForbiddenError("only the owner can delete a giveaway")
}

// IsEnded reports whether the giveaway's end timestamp has been reached at now.
func (s *Service) IsEnded(g *dg.Giveaway, now time.Time) bool {
	return g.IsEnded(now)
}

// FindDueForDraw returns ended giveaways that have not been drawn.
func (s *Service) FindDueForDraw(ctx context.Context, now time.Time) ([]dg.Giveaway, error) {
	return s.giveaways.ListDueForDraw(ctx, now)
}

// MarkAnnounced moves a drawn giveaway to announced. Repeating it is a no-op.
func (s *Service) MarkAnnounced(ctx context.Context, id string, now time.Time) error {
	if err := checkGiveawayID(id); err != nil {
		return err
	}
	changed, err := s.giveaways.MarkAnnounced(ctx, id, now.UTC())
	if err != nil {
		return err
	}
	if changed {
		log.Info().Str("giveaway_id", id).Msg("giveaway announced")
		return nil
	}
	g, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !g.Drawn {
		return apperrors.NewLifecycleError(apperrors.ErrCodeNotDrawn, id, "Giveaway has not been drawn yet")
	}
	return nil
}
