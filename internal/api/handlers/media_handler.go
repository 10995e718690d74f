package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type MediaHandler struct {
	media   service.MediaService
	adapter service.AdapterService
}

func NewMediaHandler(media service.MediaService, adapter service.AdapterService) *MediaHandler {
	return &MediaHandler{media: media, adapter: adapter}
}

func (h *MediaHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file selected",
		})
	}

	url, err := h.media.Upload(c.UserContext(), GetUserID(c), file)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"url": url,
	})
}

func (h *MediaHandler) Adapt(c *fiber.Ctx) error {
	var req transfer.AdaptRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := h.adapter.AdaptAll(c.UserContext(), &req)
	if err != nil {
		if resp != nil {
			return c.Status(errorStatus(err)).JSON(resp)
		}
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}
