package giveaway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/open-builders/giveaway-draw/internal/common/errors"
	dc "github.com/open-builders/giveaway-draw/internal/domain/channel"
	dg "github.com/open-builders/giveaway-draw/internal/domain/giveaway"
	di "github.com/open-builders/giveaway-draw/internal/domain/identity"
	dn "github.com/open-builders/giveaway-draw/internal/domain/notification"
	"github.com/open-builders/giveaway-draw/internal/utils/random"
)

// memGiveaways is an in-memory stand-in for the giveaway, participant and
// winner repositories. A single mutex gives CommitDraw the same per-giveaway
// serialization the row lock provides in Postgres.
type memGiveaways struct {
	mu         sync.Mutex
	giveaways  map[string]*dg.Giveaway
	entries    map[string][]dg.Entry
	winners    map[string][]dg.Winner
	nextEntry  int64
	commitErr  error
	pickCalls  int
	announceAt map[string]time.Time
}

func newMemGiveaways() *memGiveaways {
	return &memGiveaways{
		giveaways:  map[string]*dg.Giveaway{},
		entries:    map[string][]dg.Entry{},
		winners:    map[string][]dg.Winner{},
		announceAt: map[string]time.Time{},
	}
}

func (m *memGiveaways) Create(_ context.Context, g *dg.Giveaway) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *g
	cp.ChannelIDs = append([]int64(nil), g.ChannelIDs...)
	m.giveaways[g.ID] = &cp
	return nil
}

func (m *memGiveaways) snapshot(g *dg.Giveaway) dg.Giveaway {
	cp := *g
	cp.ParticipantsCount = len(m.entries[g.ID])
	return cp
}

// GetByID fails on ids that are not uuids, the way the uuid column does.
func (m *memGiveaways) GetByID(_ context.Context, id string) (*dg.Giveaway, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewDatabaseError("get giveaway", fmt.Errorf("invalid input syntax for type uuid: %q", id))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.giveaways[id]
	if !ok {
		return nil, nil
	}
	cp := m.snapshot(g)
	return &cp, nil
}

func (m *memGiveaways) sorted(filter func(*dg.Giveaway) bool) []dg.Giveaway {
	out := []dg.Giveaway{}
	for _, g := range m.giveaways {
		if filter(g) {
			out = append(out, m.snapshot(g))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EndsAt.Equal(out[j].EndsAt) {
			return out[i].EndsAt.Before(out[j].EndsAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memGiveaways) List(_ context.Context, limit, offset int) ([]dg.Giveaway, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(m.sorted(func(*dg.Giveaway) bool { return true }), limit, offset), nil
}

func (m *memGiveaways) ListByOwner(_ context.Context, ownerID int64, limit, offset int) ([]dg.Giveaway, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(m.sorted(func(g *dg.Giveaway) bool { return g.OwnerID == ownerID }), limit, offset), nil
}

func page(in []dg.Giveaway, limit, offset int) []dg.Giveaway {
	if offset >= len(in) {
		return []dg.Giveaway{}
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

func (m *memGiveaways) ListDueForDraw(_ context.Context, now time.Time) ([]dg.Giveaway, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(g *dg.Giveaway) bool { return !g.Drawn && g.IsEnded(now) }), nil
}

func (m *memGiveaways) ListPendingAnnouncement(_ context.Context) ([]dg.Giveaway, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(g *dg.Giveaway) bool { return g.Drawn && !g.Announced }), nil
}

func (m *memGiveaways) MarkAnnounced(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.giveaways[id]
	if !ok || !g.Drawn || g.Announced {
		return false, nil
	}
	g.Announced = true
	g.AnnouncedAt = &at
	m.announceAt[id] = at
	return true, nil
}

func (m *memGiveaways) DeleteByOwner(_ context.Context, id string, ownerID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.giveaways[id]
	if !ok || g.OwnerID != ownerID {
		return false, nil
	}
	delete(m.giveaways, id)
	delete(m.entries, id)
	delete(m.winners, id)
	return true, nil
}

func (m *memGiveaways) AddEntry(_ context.Context, e *dg.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.giveaways[e.GiveawayID]
	if !ok || g.Drawn || !e.JoinedAt.Before(g.EndsAt) {
		return apperrors.NewLifecycleError(apperrors.ErrCodeClosed, e.GiveawayID, "Giveaway is closed for participation")
	}
	for _, cur := range m.entries[e.GiveawayID] {
		if cur.IdentityID == e.IdentityID {
			return apperrors.NewDuplicateError(e.GiveawayID, e.IdentityID)
		}
	}
	m.nextEntry++
	e.ID = m.nextEntry
	m.entries[e.GiveawayID] = append(m.entries[e.GiveawayID], *e)
	return nil
}

func (m *memGiveaways) ListEntries(_ context.Context, giveawayID string) ([]dg.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dg.Entry{}, m.entries[giveawayID]...), nil
}

func (m *memGiveaways) CommitDraw(_ context.Context, giveawayID string, at time.Time, pick dg.SelectFunc) (*dg.DrawResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.giveaways[giveawayID]
	if !ok {
		return nil, apperrors.NewNotFoundError("giveaway", giveawayID)
	}
	pool := append([]dg.Entry{}, m.entries[giveawayID]...)
	if g.Drawn {
		return &dg.DrawResult{
			GiveawayID: giveawayID,
			PoolSize:   len(pool),
			Winners:    append([]dg.Winner{}, m.winners[giveawayID]...),
			DrawnAt:    *g.DrawnAt,
		}, apperrors.NewLifecycleError(apperrors.ErrCodeAlreadyDrawn, giveawayID, "Giveaway has already been drawn")
	}
	if at.Before(g.EndsAt) {
		return nil, apperrors.NewLifecycleError(apperrors.ErrCodeNotDue, giveawayID, "Giveaway has not ended yet")
	}
	if len(pool) == 0 {
		return nil, apperrors.NewLifecycleError(apperrors.ErrCodeNoParticipants, giveawayID, "Giveaway has no participants")
	}
	m.pickCalls++
	winners, err := pick(pool)
	if err != nil {
		return nil, err
	}
	if m.commitErr != nil {
		return nil, apperrors.NewDatabaseError("commit draw", m.commitErr)
	}
	for i := range winners {
		winners[i].GiveawayID = giveawayID
		winners[i].CreatedAt = at
	}
	m.winners[giveawayID] = append([]dg.Winner{}, winners...)
	g.Drawn = true
	g.DrawnAt = &at
	return &dg.DrawResult{GiveawayID: giveawayID, PoolSize: len(pool), Winners: winners, DrawnAt: at}, nil
}

func (m *memGiveaways) ListWinners(_ context.Context, giveawayID string) ([]dg.Winner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dg.Winner{}, m.winners[giveawayID]...), nil
}

func (m *memGiveaways) MarkWinnerNotified(_ context.Context, giveawayID string, identityID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.winners[giveawayID] {
		w := &m.winners[giveawayID][i]
		if w.IdentityID == identityID && !w.Notified {
			w.Notified = true
			return true, nil
		}
	}
	return false, nil
}

type memIdentities struct {
	mu   sync.Mutex
	rows map[int64]*di.Identity
}

func (m *memIdentities) add(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id] = &di.Identity{ID: id, ExternalID: fmt.Sprintf("tg-%d", id)}
}

func (m *memIdentities) Upsert(_ context.Context, u *di.Identity) error { return nil }

func (m *memIdentities) GetByID(_ context.Context, id int64) (*di.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.rows[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memIdentities) GetByExternalID(context.Context, string) (*di.Identity, error) {
	return nil, nil
}

type memChannels struct {
	rows map[int64]dc.Channel
}

func (m *memChannels) Create(context.Context, *dc.Channel) error { return nil }

func (m *memChannels) ListByOwner(context.Context, int64) ([]dc.Channel, error) {
	return nil, nil
}

func (m *memChannels) ListByIDs(_ context.Context, ids []int64) ([]dc.Channel, error) {
	out := []dc.Channel{}
	for _, id := range ids {
		if ch, ok := m.rows[id]; ok {
			out = append(out, ch)
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	rows []dn.Notification
	err  error
}

func (r *recordingNotifier) Record(_ context.Context, identityID int64, giveawayID string, typ dn.Type, message string) (*dn.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	n := dn.Notification{ID: fmt.Sprintf("n-%d", len(r.rows)+1), IdentityID: identityID, GiveawayID: giveawayID, Type: typ, Message: message}
	r.rows = append(r.rows, n)
	return &n, nil
}

func (r *recordingNotifier) count(typ dn.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if row.Type == typ {
			n++
		}
	}
	return n
}

type recordingAnnouncer struct {
	mu    sync.Mutex
	calls map[string][]dg.Winner
	fail  int
}

func (a *recordingAnnouncer) Announce(_ context.Context, g *dg.Giveaway, winners []dg.Winner) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail > 0 {
		a.fail--
		return errors.New("stream unavailable")
	}
	if a.calls == nil {
		a.calls = map[string][]dg.Winner{}
	}
	a.calls[g.ID] = winners
	return nil
}

const (
	ownerID     int64 = 1
	ownChannel  int64 = 10
	foreignChan int64 = 20
)

type fixture struct {
	svc        *Service
	store      *memGiveaways
	identities *memIdentities
	notifier   *recordingNotifier
	announcer  *recordingAnnouncer
}

func newFixture(seed uint64) *fixture {
	f := &fixture{
		store:      newMemGiveaways(),
		identities: &memIdentities{rows: map[int64]*di.Identity{}},
		notifier:   &recordingNotifier{},
		announcer:  &recordingAnnouncer{},
	}
	f.identities.add(ownerID)
	channels := &memChannels{rows: map[int64]dc.Channel{
		ownChannel:  {ID: ownChannel, OwnerID: ownerID, Handle: "ownchannel"},
		foreignChan: {ID: foreignChan, OwnerID: 99, Handle: "foreign"},
	}}
	f.svc = NewService(Deps{
		Giveaways:    f.store,
		Participants: f.store,
		Winners:      f.store,
		Channels:     channels,
		Identities:   f.identities,
		Notifier:     f.notifier,
	}, WithRandom(random.NewSeededSource(seed)), WithCurrencyScale(2), WithAnnouncer(f.announcer))
	return f
}
