package handlers

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/service"
)

func GetUserID(c *fiber.Ctx) int64 {
	userID, _ := c.Locals("user_id").(string)
	id, _ := strconv.ParseInt(userID, 10, 64)
	return id
}

// sameUser reports whether a userId named in a request body matches the
// authenticated user. A zero id means the body did not name one.
func sameUser(c *fiber.Ctx, bodyUserID int64) bool {
	return bodyUserID == 0 || bodyUserID == GetUserID(c)
}

func forbiddenUser(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"error": "userId does not match the authenticated user",
	})
}

func errorStatus(err error) int {
	switch {
	case service.IsValidationError(err),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrNotDraft),
		errors.Is(err, service.ErrAlreadyPosted),
		errors.Is(err, service.ErrAccountNotConnected),
		errors.Is(err, service.ErrTokenExpired):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrPostNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrAdaptation):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		slog.Error("request failed", "path", c.Path(), "user_id", GetUserID(c), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
