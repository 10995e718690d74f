package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/postflow/internal/metrics"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/retry"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type Outcome string

const (
	OutcomePosted     Outcome = "posted"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeNotFound   Outcome = "not_found"
	OutcomeFailed     Outcome = "failed"
	OutcomeRetry      Outcome = "retry"
	OutcomeSuperseded Outcome = "superseded"
)

// Delivery describes the queue attempt that carried a payload.
type Delivery struct {
	MessageID  string
	Retried    int
	MaxRetries int
}

type ExecutorService interface {
	// Execute performs one publish attempt. A non-nil error wrapping
	// ErrRetryable, or any store error, asks the queue to redeliver; every
	// other outcome is final for this delivery.
	Execute(ctx context.Context, payload *transfer.ExecutePayload, delivery Delivery) (Outcome, error)
}

type executorService struct {
	pr         repository.PostRepository
	history    repository.PostingHistoryRepository
	creds      CredentialService
	publishers Publishers
	now        func() time.Time
}

func NewExecutorService(pr repository.PostRepository, history repository.PostingHistoryRepository, creds CredentialService, publishers Publishers) ExecutorService {
	return &executorService{
		pr:         pr,
		history:    history,
		creds:      creds,
		publishers: publishers,
		now:        time.Now,
	}
}

func (s *executorService) Execute(ctx context.Context, payload *transfer.ExecutePayload, delivery Delivery) (Outcome, error) {
	if payload == nil {
		return OutcomeFailed, ErrInvalidPayload
	}
	if err := payload.Validate(); err != nil {
		return OutcomeFailed, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	log := slog.With("post_id", payload.PostID, "platform", payload.Platform, "message_id", delivery.MessageID, "retried", delivery.Retried)

	post, err := s.pr.GetByID(ctx, payload.PostID)
	if err != nil {
		log.Error("failed to load post", "error", err)
		return OutcomeRetry, err
	}
	if post == nil {
		log.Warn("post no longer exists; dropping job")
		s.record(payload.Platform, OutcomeNotFound)
		return OutcomeNotFound, nil
	}

	switch post.Status {
	case models.PostStatusScheduled, models.PostStatusFailed:
	default:
		log.Info("post is not pending; duplicate delivery ignored", "status", post.Status)
		s.record(payload.Platform, OutcomeSkipped)
		return OutcomeSkipped, nil
	}

	if delivery.MessageID != "" && post.HasLiveJob() && post.JobReference.String != delivery.MessageID {
		log.Info("job was replaced by a newer one; ignoring", "live_message_id", post.JobReference.String)
		s.record(payload.Platform, OutcomeSuperseded)
		return OutcomeSuperseded, nil
	}

	if post.UserID != payload.UserID || post.Platform != payload.Platform {
		return s.fail(ctx, log, post, delivery, "job payload does not match the stored post")
	}

	publisher, ok := s.publishers[post.Platform]
	if !ok || publisher == nil {
		log.Error("no publisher configured for platform")
		return s.fail(ctx, log, post, delivery, fmt.Sprintf("%s: %s publishing is not configured", ErrConfiguration, post.Platform))
	}

	account, token, err := s.creds.AccessToken(ctx, payload.UserID, payload.Platform)
	if err != nil {
		if errors.Is(err, ErrAccountNotConnected) || errors.Is(err, ErrTokenExpired) {
			return s.fail(ctx, log, post, delivery, err.Error())
		}
		return s.handleFailure(ctx, log, post, delivery, err)
	}

	result, err := publisher.Publish(ctx, account, token, PublishRequest{
		Content:  payload.Content,
		MediaURL: payload.MediaURL,
	})
	if err != nil {
		return s.handleFailure(ctx, log, post, delivery, err)
	}

	if err := s.pr.MarkPosted(ctx, post.ID, s.now(), result.ID, result.URL); err != nil {
		// reporting an error here would trigger a second publish
		log.Error("post published but status update failed", "platform_post_id", result.ID, "error", err)
	}

	log.Info("post published", "platform_post_id", result.ID, "url", result.URL)
	s.recordAttempt(ctx, log, post, delivery, OutcomePosted, "")
	return OutcomePosted, nil
}

func (s *executorService) handleFailure(ctx context.Context, log *slog.Logger, post *models.Post, delivery Delivery, cause error) (Outcome, error) {
	message := retry.SanitizeMessage(cause.Error())

	if retry.IsTransient(cause) {
		policy := retry.DefaultPolicy()
		if delivery.MaxRetries > 0 {
			policy.MaxRetries = delivery.MaxRetries
		}
		if !policy.Exhausted(delivery.Retried) {
			log.Warn("transient publish failure; queue will redeliver",
				"error", message,
				"max_retries", policy.MaxRetries,
				"next_delay", policy.Delay(delivery.Retried))
			s.recordAttempt(ctx, log, post, delivery, OutcomeRetry, message)
			return OutcomeRetry, fmt.Errorf("%w: %s", ErrRetryable, message)
		}
		log.Error("retry budget exhausted", "error", message)
	}

	return s.fail(ctx, log, post, delivery, message)
}

func (s *executorService) fail(ctx context.Context, log *slog.Logger, post *models.Post, delivery Delivery, message string) (Outcome, error) {
	message = retry.SanitizeMessage(message)
	if err := s.pr.MarkFailed(ctx, post.ID, message); err != nil {
		if errors.Is(err, repository.ErrPostNotUpdated) {
			log.Info("post changed state before it could be marked failed")
			s.record(post.Platform, OutcomeSkipped)
			return OutcomeSkipped, nil
		}
		log.Error("failed to mark post as failed", "error", err)
		return OutcomeRetry, err
	}
	log.Warn("post failed permanently", "error", message)
	s.recordAttempt(ctx, log, post, delivery, OutcomeFailed, message)
	return OutcomeFailed, nil
}

func (s *executorService) record(platform string, outcome Outcome) {
	metrics.Executions.WithLabelValues(platform, string(outcome)).Inc()
}

// recordAttempt counts an attempt that reached the publish stage and appends
// it to the post's history. History writes never affect the outcome.
func (s *executorService) recordAttempt(ctx context.Context, log *slog.Logger, post *models.Post, delivery Delivery, outcome Outcome, message string) {
	s.record(post.Platform, outcome)

	_, err := s.history.Create(ctx, &models.PostingHistory{
		PostID:       post.ID,
		UserID:       post.UserID,
		Platform:     post.Platform,
		MessageID:    nullString(delivery.MessageID),
		Attempt:      delivery.Retried + 1,
		Outcome:      string(outcome),
		ErrorMessage: nullString(message),
	})
	if err != nil {
		log.Warn("failed to record attempt history", "outcome", outcome, "error", err)
	}
}
