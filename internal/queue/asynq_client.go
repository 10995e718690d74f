package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	deliveryTimeout   = 30 * time.Second
	deliveryRetention = 24 * time.Hour
)

type asynqClient struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
}

func NewAsynqClient(client *asynq.Client, inspector *asynq.Inspector, queue string) Client {
	return &asynqClient{
		client:    client,
		inspector: inspector,
		queue:     queue,
	}
}

func (q *asynqClient) Publish(ctx context.Context, msg Message) (string, error) {
	if msg.Destination == "" {
		return "", ErrNoDestination
	}
	if msg.Delay <= 0 {
		return "", ErrInvalidDelay
	}

	body, err := json.Marshal(msg.Body)
	if err != nil {
		return "", fmt.Errorf("queue: encode body: %w", err)
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("queue: generate message id: %w", err)
	}
	messageID := "msg_" + id

	payload, err := json.Marshal(Envelope{
		MessageID:   messageID,
		Destination: msg.Destination,
		Body:        body,
		Policy:      msg.Policy,
	})
	if err != nil {
		return "", fmt.Errorf("queue: encode envelope: %w", err)
	}

	task := asynq.NewTask(TaskTypeDeliver, payload)
	info, err := q.client.EnqueueContext(ctx, task,
		asynq.TaskID(messageID),
		asynq.Queue(q.queue),
		asynq.ProcessIn(msg.Delay),
		asynq.MaxRetry(msg.Policy.MaxRetries),
		asynq.Timeout(deliveryTimeout),
		asynq.Retention(deliveryRetention),
	)
	if err != nil {
		slog.Error("queue publish failed", "destination", msg.Destination, "error", err)
		return "", fmt.Errorf("queue: publish: %w", err)
	}

	slog.Info("queue message published",
		"message_id", info.ID,
		"queue", info.Queue,
		"process_at", info.NextProcessAt,
		"max_retry", info.MaxRetry)
	return info.ID, nil
}

func (q *asynqClient) Cancel(ctx context.Context, messageID string) error {
	if err := q.inspector.DeleteTask(q.queue, messageID); err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
		}
		return fmt.Errorf("queue: cancel %s: %w", messageID, err)
	}
	slog.Info("queue message cancelled", "message_id", messageID)
	return nil
}
