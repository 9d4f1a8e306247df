package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	dn "github.com/open-builders/giveaway-draw/internal/domain/notification"
	"github.com/open-builders/giveaway-draw/internal/http/middleware"
)

// NotificationService lists a recipient's notifications.
type NotificationService interface {
	ListFor(ctx context.Context, identityID int64, limit int) ([]dn.Notification, error)
}

type NotificationHandlers struct {
	service NotificationService
}

func NewNotificationHandlers(svc NotificationService) *NotificationHandlers {
	return &NotificationHandlers{service: svc}
}

func (h *NotificationHandlers) Register(r fiber.Router) {
	r.Get("/notifications", h.list)
}

func (h *NotificationHandlers) list(c *fiber.Ctx) error {
	list, err := h.service.ListFor(c.UserContext(), middleware.UserID(c), c.QueryInt("limit", 50))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(list)
}
