package handlers

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/retry"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/transfer"
)

// ExecuteHandler receives due jobs from the delay queue. Any 2xx response is
// final for the delivery; a 5xx makes the queue redeliver with backoff.
type ExecuteHandler struct {
	s service.ExecutorService
}

func NewExecuteHandler(service service.ExecutorService) *ExecuteHandler {
	return &ExecuteHandler{s: service}
}

func (h *ExecuteHandler) Execute(c *fiber.Ctx) error {
	delivery := deliveryFromHeaders(c)

	var payload transfer.ExecutePayload
	if err := c.BodyParser(&payload); err != nil {
		slog.Warn("undecodable execution payload", "message_id", delivery.MessageID, "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid payload",
		})
	}

	outcome, err := h.s.Execute(c.UserContext(), &payload, delivery)
	switch {
	case err == nil:
		return c.Status(fiber.StatusOK).JSON(transfer.ExecuteResponse{
			Success: outcome == service.OutcomePosted,
			Outcome: string(outcome),
		})
	case errors.Is(err, service.ErrInvalidPayload):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(transfer.ExecuteResponse{
			Success: false,
			Outcome: string(outcome),
			Message: err.Error(),
		})
	}
}

func deliveryFromHeaders(c *fiber.Ctx) service.Delivery {
	retried, _ := strconv.Atoi(c.Get(queue.HeaderRetried))
	maxRetries, err := strconv.Atoi(c.Get(queue.HeaderMaxRetries))
	if err != nil {
		maxRetries = retry.DefaultMaxRetries
	}
	return service.Delivery{
		MessageID:  c.Get(queue.HeaderMessageID),
		Retried:    retried,
		MaxRetries: maxRetries,
	}
}
