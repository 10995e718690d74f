package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/queue"
)

type QueueMiddleware struct {
	signer *queue.Signer
}

func NewQueueMiddleware(signer *queue.Signer) *QueueMiddleware {
	return &QueueMiddleware{signer: signer}
}

// VerifySignature rejects callback deliveries that were not signed by the
// delay queue or whose body was altered in transit.
func (m *QueueMiddleware) VerifySignature() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := m.signer.Verify(c.Get(queue.HeaderSignature), c.Body()); err != nil {
			slog.Warn("rejected queue delivery", "path", c.Path(), "message_id", c.Get(queue.HeaderMessageID), "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid queue signature",
			})
		}
		return c.Next()
	}
}
