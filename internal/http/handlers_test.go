package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/open-builders/giveaway-draw/internal/common/errors"
	"github.com/open-builders/giveaway-draw/internal/config"
	dc "github.com/open-builders/giveaway-draw/internal/domain/channel"
	dg "github.com/open-builders/giveaway-draw/internal/domain/giveaway"
	di "github.com/open-builders/giveaway-draw/internal/domain/identity"
	dn "github.com/open-builders/giveaway-draw/internal/domain/notification"
	"github.com/open-builders/giveaway-draw/internal/http/middleware"
	"github.com/open-builders/giveaway-draw/internal/metrics"
	gsvc "github.com/open-builders/giveaway-draw/internal/service/giveaway"
)

type stubIdentities struct {
	byExternal map[string]*di.Identity
	upsertErr  error
	results    []dc.Result
}

func (s *stubIdentities) Upsert(_ context.Context, externalID, displayName string) (*di.Identity, error) {
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	if s.byExternal == nil {
		s.byExternal = map[string]*di.Identity{}
	}
	u, ok := s.byExternal[externalID]
	if !ok {
		u = &di.Identity{ID: int64(len(s.byExternal) + 1), ExternalID: externalID, DisplayName: displayName}
		s.byExternal[externalID] = u
	}
	return u, nil
}

func (s *stubIdentities) Resolve(ctx context.Context, externalID, displayName string) (*di.Identity, error) {
	return s.Upsert(ctx, externalID, displayName)
}

func (s *stubIdentities) RegisterChannel(_ context.Context, ownerID int64, reg dc.Registration) (*dc.Channel, error) {
	if reg.Handle == "taken" {
		return nil, apperrors.NewConflictError("channel", "already registered")
	}
	return &dc.Channel{ID: 10, OwnerID: ownerID, Handle: reg.Handle, ChatRef: reg.ChatRef}, nil
}

func (s *stubIdentities) RegisterChannels(_ context.Context, ownerID int64, regs []dc.Registration) ([]dc.Result, error) {
	if len(regs) == 0 {
		return nil, apperrors.NewValidationError("channels", "is required")
	}
	return s.results, nil
}

func (s *stubIdentities) ListChannels(context.Context, int64) ([]dc.Channel, error) {
	return []dc.Channel{}, nil
}

type stubGiveaways struct {
	g        *dg.Giveaway
	created  *gsvc.CreateInput
	drawRes  *dg.DrawResult
	drawErr  error
	joinErr  error
	joinedBy int64
}

func (s *stubGiveaways) Create(_ context.Context, in gsvc.CreateInput, now time.Time) (*dg.Giveaway, error) {
	s.created = &in
	if in.WinnerCount <= 0 {
		return nil, apperrors.NewValidationError("winner_count", "must be greater than 0")
	}
	return &dg.Giveaway{ID: "g-1", OwnerID: in.OwnerID, Name: in.Name, PrizeAmount: 10000, WinnerCount: in.WinnerCount, EndsAt: now.Add(time.Hour)}, nil
}

func (s *stubGiveaways) Get(_ context.Context, id string) (*dg.Giveaway, error) {
	if s.g == nil || s.g.ID != id {
		return nil, apperrors.NewNotFoundError("giveaway", id)
	}
	cp := *s.g
	return &cp, nil
}

func (s *stubGiveaways) List(context.Context, int, int) ([]dg.Giveaway, error) {
	if s.g == nil {
		return []dg.Giveaway{}, nil
	}
	return []dg.Giveaway{*s.g}, nil
}

func (s *stubGiveaways) ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]dg.Giveaway, error) {
	return s.List(ctx, limit, offset)
}

func (s *stubGiveaways) Delete(_ context.Context, id string, requesterID int64) error {
	if s.g == nil || s.g.ID != id {
		return apperrors.NewNotFoundError("giveaway", id)
	}
	if s.g.OwnerID != requesterID {
		return apperrors.NewForbiddenError("only the owner can delete a giveaway")
	}
	return nil
}

func (s *stubGiveaways) Join(_ context.Context, identityID int64, giveawayID string, now time.Time) (*dg.Entry, error) {
	if s.joinErr != nil {
		return nil, s.joinErr
	}
	s.joinedBy = identityID
	return &dg.Entry{ID: 1, GiveawayID: giveawayID, IdentityID: identityID, JoinedAt: now}, nil
}

func (s *stubGiveaways) ListParticipants(context.Context, string) ([]dg.Entry, error) {
	return []dg.Entry{}, nil
}

func (s *stubGiveaways) Draw(context.Context, string, time.Time) (*dg.DrawResult, error) {
	return s.drawRes, s.drawErr
}

func (s *stubGiveaways) ListWinners(context.Context, string) ([]dg.Winner, error) {
	if s.drawRes == nil {
		return []dg.Winner{}, nil
	}
	return s.drawRes.Winners, nil
}

func (s *stubGiveaways) MarkAnnounced(context.Context, string, time.Time) error {
	if s.g != nil && !s.g.Drawn {
		return apperrors.NewLifecycleError(apperrors.ErrCodeNotDrawn, s.g.ID, "Giveaway has not been drawn yet")
	}
	return nil
}

type stubNotifications struct{}

func (stubNotifications) ListFor(_ context.Context, identityID int64, limit int) ([]dn.Notification, error) {
	return []dn.Notification{{ID: "n-1", IdentityID: identityID, Type: dn.TypeWinner, Message: "won"}}, nil
}

func newTestApp(ids *stubIdentities, gs GiveawayService) *fiber.App {
	cfg := &config.Config{CORSAllowedOrigins: "*", CurrencyScale: 2}
	reg := prometheus.NewRegistry()
	return NewFiberApp(cfg, Deps{
		Identities:    ids,
		Giveaways:     gs,
		Notifications: stubNotifications{},
		Metrics:       metrics.New(reg),
		Gatherer:      reg,
	})
}

func do(t *testing.T, app *fiber.App, method, path, user, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(middleware.HeaderUserID, user)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		apperrors.NewValidationError("x", "bad"):                                   400,
		apperrors.NewForbiddenError("no"):                                          403,
		apperrors.NewNotFoundError("giveaway", "g"):                                404,
		apperrors.NewConflictError("channel", "taken"):                             409,
		apperrors.NewDuplicateError("g", 1):                                        409,
		apperrors.NewLifecycleError(apperrors.ErrCodeClosed, "g", "closed"):        409,
		apperrors.NewLifecycleError(apperrors.ErrCodeNotDue, "g", "not due"):       409,
		apperrors.NewLifecycleError(apperrors.ErrCodeNoParticipants, "g", "empty"): 409,
		apperrors.NewDatabaseError("select", errors.New("down")):                   503,
		apperrors.New(apperrors.ErrCodeInternal, "boom"):                           500,
		errors.New("plain"):                                                        500,
		fiber.ErrMethodNotAllowed:                                                  405,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(&stubIdentities{}, &stubGiveaways{})

	status, body := do(t, app, "GET", "/health", "", "")
	assert.Equal(t, 200, status)
	assert.Equal(t, "ok", body["status"])

	status, _ = do(t, app, "GET", "/metrics", "", "")
	assert.Equal(t, 200, status)
}

func TestIdentityHeaderRequired(t *testing.T) {
	app := newTestApp(&stubIdentities{}, &stubGiveaways{})

	status, _ := do(t, app, "GET", "/api/v1/channels", "", "")
	assert.Equal(t, 401, status)

	status, _ = do(t, app, "GET", "/api/v1/giveaways", "", "")
	assert.Equal(t, 200, status, "listing is public")

	ids := &stubIdentities{upsertErr: apperrors.NewDatabaseError("upsert", errors.New("down"))}
	app = newTestApp(ids, &stubGiveaways{})
	status, body := do(t, app, "GET", "/api/v1/channels", "555", "")
	assert.Equal(t, 503, status)
	assert.Equal(t, "DATABASE_ERROR", body["code"])
	assert.NotContains(t, body["error"], "down")
}

func TestUpsertIdentity(t *testing.T) {
	app := newTestApp(&stubIdentities{}, &stubGiveaways{})
	status, body := do(t, app, "POST", "/api/v1/identities", "", `{"external_id":"42","display_name":"bob"}`)
	assert.Equal(t, 200, status)
	assert.Equal(t, "42", body["external_id"])
}

func TestRegisterChannel(t *testing.T) {
	app := newTestApp(&stubIdentities{}, &stubGiveaways{})

	status, body := do(t, app, "POST", "/api/v1/channels", "42", `{"handle":"news"}`)
	assert.Equal(t, 201, status)
	assert.Equal(t, "news", body["handle"])

	status, body = do(t, app, "POST", "/api/v1/channels", "42", `{"handle":"taken"}`)
	assert.Equal(t, 409, status)
	assert.Equal(t, "CONFLICT", body["code"])

	status, _ = do(t, app, "POST", "/api/v1/channels", "42", `{`)
	assert.Equal(t, 400, status)
}

func TestRegisterChannelsBatch(t *testing.T) {
	ids := &stubIdentities{results: []dc.Result{
		{Registration: dc.Registration{Handle: "a"}, Channel: &dc.Channel{ID: 1, Handle: "a"}},
		{Registration: dc.Registration{Handle: "b"}, Error: "Conflict with channel: already registered"},
	}}
	app := newTestApp(ids, &stubGiveaways{})

	status, body := do(t, app, "POST", "/api/v1/channels/batch", "42", `{"channels":[{"handle":"a"},{"handle":"b"}]}`)
	assert.Equal(t, 200, status)
	results := body["results"].([]interface{})
	require.Len(t, results, 2)
	assert.NotContains(t, results[0], "error")
	assert.Contains(t, results[1], "error")

	status, _ = do(t, app, "POST", "/api/v1/channels/batch", "42", `{"channels":[]}`)
	assert.Equal(t, 400, status)
}

func TestCreateGiveaway(t *testing.T) {
	gs := &stubGiveaways{}
	app := newTestApp(&stubIdentities{}, gs)

	status, body := do(t, app, "POST", "/api/v1/giveaways", "42",
		`{"owner_id":999,"name":"Spring","prize_amount":"100.00","winner_count":3,"ends_at":"2030-01-01T00:00:00Z","channel_ids":[10]}`)
	require.Equal(t, 201, status)
	assert.Equal(t, "100.00", body["prize_amount"])
	assert.Equal(t, "open", body["state"])
	require.NotNil(t, gs.created)
	assert.Equal(t, int64(1), gs.created.OwnerID, "owner comes from the caller, not the body")
	assert.True(t, decimal.NewFromInt(100).Equal(gs.created.PrizeAmount))

	status, body = do(t, app, "POST", "/api/v1/giveaways", "42", `{"name":"x","winner_count":0}`)
	assert.Equal(t, 400, status)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

func TestJoinGiveaway(t *testing.T) {
	gs := &stubGiveaways{}
	app := newTestApp(&stubIdentities{}, gs)

	status, body := do(t, app, "POST", "/api/v1/giveaways/g-1/join", "42", "")
	assert.Equal(t, 201, status)
	assert.Equal(t, "g-1", body["giveaway_id"])
	assert.Equal(t, int64(1), gs.joinedBy)

	gs.joinErr = apperrors.NewDuplicateError("g-1", 1)
	status, body = do(t, app, "POST", "/api/v1/giveaways/g-1/join", "42", "")
	assert.Equal(t, 409, status)
	assert.Equal(t, "DUPLICATE", body["code"])

	gs.joinErr = apperrors.NewLifecycleError(apperrors.ErrCodeClosed, "g-1", "Giveaway is closed for participation")
	status, body = do(t, app, "POST", "/api/v1/giveaways/g-1/join", "42", "")
	assert.Equal(t, 409, status)
	assert.Equal(t, "CLOSED", body["code"])
}

func TestDrawGiveaway(t *testing.T) {
	drawnAt := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	res := &dg.DrawResult{
		GiveawayID: "g-1",
		PoolSize:   5,
		DrawnAt:    drawnAt,
		Winners: []dg.Winner{
			{GiveawayID: "g-1", IdentityID: 3, Position: 1, Share: 3334},
			{GiveawayID: "g-1", IdentityID: 5, Position: 2, Share: 3333},
		},
	}
	gs := &stubGiveaways{g: &dg.Giveaway{ID: "g-1", OwnerID: 1}, drawRes: res}
	app := newTestApp(&stubIdentities{}, gs)

	status, body := do(t, app, "POST", "/api/v1/giveaways/g-1/draw", "42", "")
	require.Equal(t, 200, status)
	assert.Equal(t, false, body["already_drawn"])
	winners := body["winners"].([]interface{})
	require.Len(t, winners, 2)
	assert.Equal(t, "33.34", winners[0].(map[string]interface{})["share"])

	gs.drawErr = apperrors.NewLifecycleError(apperrors.ErrCodeAlreadyDrawn, "g-1", "Giveaway has already been drawn")
	status, body = do(t, app, "POST", "/api/v1/giveaways/g-1/draw", "42", "")
	assert.Equal(t, 200, status)
	assert.Equal(t, true, body["already_drawn"])

	gs.drawRes, gs.drawErr = nil, apperrors.NewLifecycleError(apperrors.ErrCodeNotDue, "g-1", "Giveaway has not ended yet")
	status, body = do(t, app, "POST", "/api/v1/giveaways/g-1/draw", "42", "")
	assert.Equal(t, 409, status)
	assert.Equal(t, "NOT_DUE", body["code"])

	status, _ = do(t, app, "POST", "/api/v1/giveaways/g-1/draw", "someone-else", "")
	assert.Equal(t, 403, status)

	status, _ = do(t, app, "POST", "/api/v1/giveaways/missing/draw", "42", "")
	assert.Equal(t, 404, status)
}

func TestDeleteAndAnnounce(t *testing.T) {
	gs := &stubGiveaways{g: &dg.Giveaway{ID: "g-1", OwnerID: 1}}
	ids := &stubIdentities{}
	app := newTestApp(ids, gs)

	// first caller becomes identity 1, the owner
	status, body := do(t, app, "POST", "/api/v1/giveaways/g-1/announce", "42", "")
	assert.Equal(t, 409, status)
	assert.Equal(t, "NOT_DRAWN", body["code"])

	gs.g.Drawn = true
	status, _ = do(t, app, "POST", "/api/v1/giveaways/g-1/announce", "42", "")
	assert.Equal(t, 204, status)

	status, _ = do(t, app, "DELETE", "/api/v1/giveaways/g-1", "intruder", "")
	assert.Equal(t, 403, status)

	status, _ = do(t, app, "DELETE", "/api/v1/giveaways/g-1", "42", "")
	assert.Equal(t, 204, status)
}

func TestGetGiveawayAndNotifications(t *testing.T) {
	gs := &stubGiveaways{g: &dg.Giveaway{ID: "g-1", OwnerID: 1, PrizeAmount: 1250, EndsAt: time.Now().Add(-time.Hour), Drawn: true}}
	app := newTestApp(&stubIdentities{}, gs)

	status, body := do(t, app, "GET", "/api/v1/giveaways/g-1", "42", "")
	assert.Equal(t, 200, status)
	assert.Equal(t, "drawn", body["state"])
	assert.Equal(t, "12.50", body["prize_amount"])

	status, _ = do(t, app, "GET", "/api/v1/giveaways/nope", "42", "")
	assert.Equal(t, 404, status)

	status, _ = do(t, app, "GET", "/api/v1/notifications", "42", "")
	assert.Equal(t, 200, status)
}

func TestMalformedGiveawayIDIsNotFound(t *testing.T) {
	// Malformed ids are rejected before any repository is touched.
	app := newTestApp(&stubIdentities{}, gsvc.NewService(gsvc.Deps{}))

	for _, tc := range []struct{ method, path string }{
		{"GET", "/api/v1/giveaways/not-a-uuid"},
		{"DELETE", "/api/v1/giveaways/not-a-uuid"},
		{"POST", "/api/v1/giveaways/not-a-uuid/join"},
		{"POST", "/api/v1/giveaways/not-a-uuid/draw"},
		{"GET", "/api/v1/giveaways/not-a-uuid/winners"},
	} {
		status, body := do(t, app, tc.method, tc.path, "42", "")
		assert.Equal(t, 404, status, tc.method+" "+tc.path)
		assert.Equal(t, "NOT_FOUND", body["code"], tc.method+" "+tc.path)
	}
}
