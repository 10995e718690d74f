package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postflow/internal/retry"
)

// Deliverer is the asynq handler that hands a due message to its callback URL.
type Deliverer struct {
	signer     *Signer
	httpClient *http.Client
}

func NewDeliverer(signer *Signer, httpClient *http.Client) *Deliverer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 25 * time.Second}
	}
	return &Deliverer{
		signer:     signer,
		httpClient: httpClient,
	}
}

func (d *Deliverer) HandleDeliveryTask(ctx context.Context, task *asynq.Task) error {
	var env Envelope
	if err := json.Unmarshal(task.Payload(), &env); err != nil {
		return fmt.Errorf("decode envelope: %v: %w", err, asynq.SkipRetry)
	}

	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		maxRetry = env.Policy.MaxRetries
	}

	signature, err := d.signer.Sign(env.Destination, env.MessageID, env.Body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, env.Destination, bytes.NewReader(env.Body))
	if err != nil {
		return fmt.Errorf("build delivery request: %v: %w", err, asynq.SkipRetry)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderMessageID, env.MessageID)
	req.Header.Set(HeaderRetried, strconv.Itoa(retried))
	req.Header.Set(HeaderMaxRetries, strconv.Itoa(maxRetry))
	req.Header.Set(HeaderSignature, signature)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		slog.Warn("delivery failed", "message_id", env.MessageID, "retried", retried, "error", err)
		return fmt.Errorf("deliver %s: %w", env.MessageID, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		slog.Info("message delivered", "message_id", env.MessageID, "status", resp.StatusCode, "retried", retried)
		return nil
	case isRedeliverable(resp.StatusCode):
		slog.Warn("callback asked for redelivery",
			"message_id", env.MessageID,
			"status", resp.StatusCode,
			"retried", retried,
			"max_retry", maxRetry)
		return fmt.Errorf("callback returned %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	default:
		slog.Error("callback rejected message", "message_id", env.MessageID, "status", resp.StatusCode, "body", string(respBody))
		return fmt.Errorf("callback rejected with %d: %s: %w", resp.StatusCode, bytes.TrimSpace(respBody), asynq.SkipRetry)
	}
}

func isRedeliverable(status int) bool {
	if status >= 500 {
		return true
	}
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
}

// RetryDelay is an asynq.RetryDelayFunc that honours the policy attached to
// each envelope.
func RetryDelay(n int, _ error, task *asynq.Task) time.Duration {
	var env Envelope
	if err := json.Unmarshal(task.Payload(), &env); err != nil {
		return retry.Delay(n)
	}
	return env.Policy.Delay(n)
}
