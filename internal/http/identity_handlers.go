package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	dc "github.com/open-builders/giveaway-draw/internal/domain/channel"
	di "github.com/open-builders/giveaway-draw/internal/domain/identity"
	"github.com/open-builders/giveaway-draw/internal/http/middleware"
)

// IdentityService is the registry used by the identity and channel routes.
type IdentityService interface {
	Upsert(ctx context.Context, externalID, displayName string) (*di.Identity, error)
	Resolve(ctx context.Context, externalID, displayName string) (*di.Identity, error)
	RegisterChannel(ctx context.Context, ownerID int64, reg dc.Registration) (*dc.Channel, error)
	RegisterChannels(ctx context.Context, ownerID int64, regs []dc.Registration) ([]dc.Result, error)
	ListChannels(ctx context.Context, ownerID int64) ([]dc.Channel, error)
}

// IdentityHandlers exposes identity upsert and channel registration.
type IdentityHandlers struct {
	service IdentityService
}

func NewIdentityHandlers(svc IdentityService) *IdentityHandlers {
	return &IdentityHandlers{service: svc}
}

// RegisterPublic mounts routes that do not need a resolved caller.
func (h *IdentityHandlers) RegisterPublic(r fiber.Router) {
	r.Post("/identities", h.upsert)
}

func (h *IdentityHandlers) Register(r fiber.Router) {
	r.Get("/channels", h.listChannels)
	r.Post("/channels", h.registerChannel)
	r.Post("/channels/batch", h.registerChannels)
}

type upsertIdentityReq struct {
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
}

func (h *IdentityHandlers) upsert(c *fiber.Ctx) error {
	var req upsertIdentityReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	u, err := h.service.Upsert(c.UserContext(), req.ExternalID, req.DisplayName)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(u)
}

func (h *IdentityHandlers) listChannels(c *fiber.Ctx) error {
	chs, err := h.service.ListChannels(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(chs)
}

func (h *IdentityHandlers) registerChannel(c *fiber.Ctx) error {
	var req dc.Registration
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	ch, err := h.service.RegisterChannel(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ch)
}

type registerChannelsReq struct {
	Channels []dc.Registration `json:"channels"`
}

// registerChannels answers 200 with per-item results even when some fail.
func (h *IdentityHandlers) registerChannels(c *fiber.Ctx) error {
	var req registerChannelsReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	results, err := h.service.RegisterChannels(c.UserContext(), middleware.UserID(c), req.Channels)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"results": results})
}
