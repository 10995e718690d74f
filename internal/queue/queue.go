// Package queue is the delay-queue client: it holds a message for a delay and
// then delivers its body to a callback URL, redelivering on failure according
// to the retry policy attached when the message was published.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/maheshrc27/postflow/internal/retry"
)

const TaskTypeDeliver = "delivery:http"

const (
	HeaderMessageID  = "X-Queue-Message-Id"
	HeaderRetried    = "X-Queue-Retried"
	HeaderMaxRetries = "X-Queue-Max-Retries"
	HeaderSignature  = "X-Queue-Signature"
)

var (
	ErrNoDestination   = errors.New("queue: message destination is empty")
	ErrInvalidDelay    = errors.New("queue: delay must be positive")
	ErrMessageNotFound = errors.New("queue: message not found")
)

// Client publishes delayed messages and cancels them by message id.
type Client interface {
	Publish(ctx context.Context, msg Message) (string, error)
	Cancel(ctx context.Context, messageID string) error
}

type Message struct {
	Destination string
	Body        any
	Delay       time.Duration
	Policy      retry.Policy
}

// Envelope is the task payload stored in the queue until delivery.
type Envelope struct {
	MessageID   string          `json:"message_id"`
	Destination string          `json:"destination"`
	Body        json.RawMessage `json:"body"`
	Policy      retry.Policy    `json:"policy"`
}
