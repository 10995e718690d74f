package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type PostHandler struct {
	s    service.PostService
	bulk service.BulkService
}

func NewPostHandler(service service.PostService, bulk service.BulkService) *PostHandler {
	return &PostHandler{s: service, bulk: bulk}
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userId := GetUserID(c)

	posts, err := h.s.List(c.UserContext(), userId, c.Query("status"))
	if err != nil {
		return respondError(c, err)
	}

	views := make([]transfer.PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, transfer.NewPostView(p))
	}
	return c.Status(fiber.StatusOK).JSON(views)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	post, err := h.s.PostInfo(c.UserContext(), c.Params("id"), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(transfer.NewPostView(post))
}

func (h *PostHandler) PostHistory(c *fiber.Ctx) error {
	entries, err := h.s.History(c.UserContext(), c.Params("id"), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	views := make([]transfer.AttemptView, 0, len(entries))
	for _, e := range entries {
		views = append(views, transfer.NewAttemptView(e))
	}
	return c.Status(fiber.StatusOK).JSON(views)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	if err := h.s.Remove(c.UserContext(), GetUserID(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) Bulk(c *fiber.Ctx) error {
	var req transfer.BulkRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if !sameUser(c, req.UserID) {
		return forbiddenUser(c)
	}

	res, err := h.bulk.Apply(c.UserContext(), GetUserID(c), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}
