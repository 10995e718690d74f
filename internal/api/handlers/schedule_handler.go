package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type ScheduleHandler struct {
	s service.SchedulerService
}

func NewScheduleHandler(service service.SchedulerService) *ScheduleHandler {
	return &ScheduleHandler{s: service}
}

func (h *ScheduleHandler) Schedule(c *fiber.Ctx) error {
	var req transfer.ScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if !sameUser(c, req.UserID) {
		return forbiddenUser(c)
	}

	resp, err := h.s.Schedule(c.UserContext(), GetUserID(c), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *ScheduleHandler) RetryPost(c *fiber.Ctx) error {
	var req transfer.RetryRequest
	if err := c.BodyParser(&req); err != nil || req.PostID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "postId is required",
		})
	}

	resp, err := h.s.RetryPost(c.UserContext(), req.PostID, GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":   true,
		"message":   "Post rescheduled for retry",
		"postId":    resp.PostID,
		"messageId": resp.MessageID,
	})
}

func (h *ScheduleHandler) BatchSchedule(c *fiber.Ctx) error {
	var req transfer.BatchScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if !sameUser(c, req.UserID) {
		return forbiddenUser(c)
	}

	resp, err := h.s.BatchSchedule(c.UserContext(), GetUserID(c), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *ScheduleHandler) SaveDraft(c *fiber.Ctx) error {
	var req transfer.DraftRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	post, err := h.s.SaveDraft(c.UserContext(), GetUserID(c), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(transfer.NewPostView(post))
}

func (h *ScheduleHandler) ScheduleDraft(c *fiber.Ctx) error {
	var req transfer.ScheduleDraftRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := h.s.ScheduleDraft(c.UserContext(), GetUserID(c), c.Params("id"), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}
