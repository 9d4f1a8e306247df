package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/open-builders/giveaway-draw/internal/common/errors"
	dg "github.com/open-builders/giveaway-draw/internal/domain/giveaway"
	"github.com/open-builders/giveaway-draw/internal/http/middleware"
	gsvc "github.com/open-builders/giveaway-draw/internal/service/giveaway"
)

// GiveawayService is the lifecycle, ledger and draw surface used by the routes.
type GiveawayService interface {
	Create(ctx context.Context, in gsvc.CreateInput, now time.Time) (*dg.Giveaway, error)
	Get(ctx context.Context, id string) (*dg.Giveaway, error)
	List(ctx context.Context, limit, offset int) ([]dg.Giveaway, error)
	ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]dg.Giveaway, error)
	Delete(ctx context.Context, id string, requesterID int64) error
	Join(ctx context.Context, identityID int64, giveawayID string, now time.Time) (*dg.Entry, error)
	ListParticipants(ctx context.Context, giveawayID string) ([]dg.Entry, error)
	Draw(ctx context.Context, giveawayID string, now time.Time) (*dg.DrawResult, error)
	ListWinners(ctx context.Context, giveawayID string) ([]dg.Winner, error)
	MarkAnnounced(ctx context.Context, id string, now time.Time) error
}

// GiveawayHandlersFiber provides Fiber endpoints for giveaways.
type GiveawayHandlersFiber struct {
	service GiveawayService
	scale   int32
	now     func() time.Time
}

func NewGiveawayHandlersFiber(svc GiveawayService, scale int32) *GiveawayHandlersFiber {
	return &GiveawayHandlersFiber{service: svc, scale: scale, now: func() time.Time { return time.Now().UTC() }}
}

// RegisterPublicFiber mounts the read-only listing, which may sit behind a
// response cache.
func (h *GiveawayHandlersFiber) RegisterPublicFiber(r fiber.Router, mws ...fiber.Handler) {
	r.Get("/giveaways", append(mws, h.list)...)
}

func (h *GiveawayHandlersFiber) RegisterFiber(r fiber.Router) {
	r.Post("/giveaways", h.create)
	r.Get("/giveaways/me", h.listMine)
	r.Get("/giveaways/:id", h.getByID)
	r.Delete("/giveaways/:id", h.delete)
	r.Post("/giveaways/:id/join", h.join)
	r.Get("/giveaways/:id/participants", h.participants)
	r.Post("/giveaways/:id/draw", h.draw)
	r.Get("/giveaways/:id/winners", h.winners)
	r.Post("/giveaways/:id/announce", h.announce)
}

// giveawayView adds the derived state and a formatted prize to a giveaway.
type giveawayView struct {
	*dg.Giveaway
	State dg.State `json:"state"`
	Prize string   `json:"prize_amount"`
}

type winnerView struct {
	dg.Winner
	ShareAmount string `json:"share"`
}

func (h *GiveawayHandlersFiber) view(g *dg.Giveaway, now time.Time) giveawayView {
	return giveawayView{Giveaway: g, State: g.State(now), Prize: dg.FormatMinorUnits(g.PrizeAmount, h.scale)}
}

func (h *GiveawayHandlersFiber) views(list []dg.Giveaway) []giveawayView {
	now := h.now()
	out := make([]giveawayView, len(list))
	for i := range list {
		out[i] = h.view(&list[i], now)
	}
	return out
}

func (h *GiveawayHandlersFiber) winnerViews(ws []dg.Winner) []winnerView {
	out := make([]winnerView, len(ws))
	for i, w := range ws {
		out[i] = winnerView{Winner: w, ShareAmount: dg.FormatMinorUnits(w.Share, h.scale)}
	}
	return out
}

// create handles creation of a new giveaway. The owner is always the caller.
func (h *GiveawayHandlersFiber) create(c *fiber.Ctx) error {
	var req gsvc.CreateInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	req.OwnerID = middleware.UserID(c)

	now := h.now()
	g, err := h.service.Create(c.UserContext(), req, now)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(h.view(g, now))
}

func (h *GiveawayHandlersFiber) getByID(c *fiber.Ctx) error {
	g, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(h.view(g, h.now()))
}

func (h *GiveawayHandlersFiber) list(c *fiber.Ctx) error {
	list, err := h.service.List(c.UserContext(), c.QueryInt("limit", 20), c.QueryInt("offset", 0))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(h.views(list))
}

// listMine returns all giveaways created by the caller.
func (h *GiveawayHandlersFiber) listMine(c *fiber.Ctx) error {
	list, err := h.service.ListByOwner(c.UserContext(), middleware.UserID(c), c.QueryInt("limit", 100), c.QueryInt("offset", 0))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(h.views(list))
}

func (h *GiveawayHandlersFiber) delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id"), middleware.UserID(c)); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *GiveawayHandlersFiber) join(c *fiber.Ctx) error {
	e, err := h.service.Join(c.UserContext(), middleware.UserID(c), c.Params("id"), h.now())
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(e)
}

func (h *GiveawayHandlersFiber) participants(c *fiber.Ctx) error {
	entries, err := h.service.ListParticipants(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(entries)
}

// ownGiveaway loads the giveaway and requires the caller to own it.
func (h *GiveawayHandlersFiber) ownGiveaway(c *fiber.Ctx) (*dg.Giveaway, error) {
	g, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return nil, err
	}
	if g.OwnerID != middleware.UserID(c) {
		return nil, apperrors.NewForbiddenError("only the owner can do this")
	}
	return g, nil
}

// draw triggers the draw on demand. A replay answers 200 with the committed
// result and already_drawn set.
func (h *GiveawayHandlersFiber) draw(c *fiber.Ctx) error {
	g, err := h.ownGiveaway(c)
	if err != nil {
		return writeError(c, err)
	}
	res, err := h.service.Draw(c.UserContext(), g.ID, h.now())
	replay := errors.Is(err, apperrors.ErrAlreadyDrawn)
	if err != nil && !replay {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"giveaway_id":   res.GiveawayID,
		"pool_size":     res.PoolSize,
		"drawn_at":      res.DrawnAt,
		"winners":       h.winnerViews(res.Winners),
		"already_drawn": replay,
	})
}

func (h *GiveawayHandlersFiber) winners(c *fiber.Ctx) error {
	ws, err := h.service.ListWinners(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(h.winnerViews(ws))
}

func (h *GiveawayHandlersFiber) announce(c *fiber.Ctx) error {
	g, err := h.ownGiveaway(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.service.MarkAnnounced(c.UserContext(), g.ID, h.now()); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
