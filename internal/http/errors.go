package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	apperrors "github.com/open-builders/giveaway-draw/internal/common/errors"
)

// statusFor maps an application error to an HTTP status.
func statusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case apperrors.ErrCodeValidation:
		return fiber.StatusBadRequest
	case apperrors.ErrCodeForbidden:
		return fiber.StatusForbidden
	case apperrors.ErrCodeNotFound:
		return fiber.StatusNotFound
	case apperrors.ErrCodeConflict, apperrors.ErrCodeDuplicate,
		apperrors.ErrCodeClosed, apperrors.ErrCodeNotDue,
		apperrors.ErrCodeAlreadyDrawn, apperrors.ErrCodeNotDrawn,
		apperrors.ErrCodeNoParticipants:
		return fiber.StatusConflict
	case apperrors.ErrCodeDatabase, apperrors.ErrCodeCache:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError renders err as {"error", "code", "details"}. Internal causes
// are logged but never sent to the client.
func writeError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	body := fiber.Map{"error": err.Error()}

	if appErr, ok := apperrors.AsAppError(err); ok {
		body = fiber.Map{"error": appErr.Message, "code": appErr.Code}
		if len(appErr.Details) > 0 && !appErr.IsInternal() {
			body["details"] = appErr.Details
		}
	} else if status >= fiber.StatusInternalServerError {
		body["error"] = "internal error"
	}

	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Int("status", status).Msg("request failed")
	}
	return c.Status(status).JSON(body)
}

// ErrorHandler is the fiber-level fallback for errors returned by handlers.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return writeError(c, err)
}
