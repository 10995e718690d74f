package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/metrics"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/retry"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const (
	// ExecuteCallbackPath is where the delay queue delivers due posts.
	ExecuteCallbackPath = "/queue/post/execute"

	MaxBatchSize = 200

	retryFireBuffer  = 10 * time.Second
	batchConcurrency = 10
)

type SchedulerService interface {
	Schedule(ctx context.Context, userID int64, req *transfer.ScheduleRequest) (*transfer.ScheduleResponse, error)
	SaveDraft(ctx context.Context, userID int64, req *transfer.DraftRequest) (*models.Post, error)
	ScheduleDraft(ctx context.Context, userID int64, postID string, req *transfer.ScheduleDraftRequest) (*transfer.ScheduleResponse, error)
	RetryPost(ctx context.Context, postID string, userID int64) (*transfer.ScheduleResponse, error)
	BatchSchedule(ctx context.Context, userID int64, req *transfer.BatchScheduleRequest) (*transfer.BatchScheduleResponse, error)
}

type schedulerService struct {
	cfg    config.Config
	pr     repository.PostRepository
	creds  CredentialService
	queue  queue.Client
	policy retry.Policy
	now    func() time.Time
}

func NewSchedulerService(cfg config.Config, pr repository.PostRepository, creds CredentialService, q queue.Client) SchedulerService {
	return &schedulerService{
		cfg:    cfg,
		pr:     pr,
		creds:  creds,
		queue:  q,
		policy: retry.DefaultPolicy(),
		now:    time.Now,
	}
}

// ParseScheduledTime accepts RFC 3339 timestamps and, for form input, minute
// precision local datetimes which are read as UTC.
func ParseScheduledTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: scheduled time is required", ErrInvalidScheduleTime)
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02T15:04", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not an ISO-8601 timestamp", ErrInvalidScheduleTime, value)
	}
	return t, nil
}

// DelaySeconds returns the whole seconds between now and scheduledTime.
func DelaySeconds(scheduledTime, now time.Time) (int64, error) {
	seconds := int64(scheduledTime.Sub(now) / time.Second)
	if seconds <= 0 {
		return 0, ErrInvalidScheduleTime
	}
	return seconds, nil
}

func ValidateContent(platform, content string) error {
	if !models.IsValidPlatform(platform) {
		return fmt.Errorf("%w: %q", ErrInvalidPlatform, platform)
	}
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if limit := models.ContentLimit(platform); utf8.RuneCountInString(content) > limit {
		return fmt.Errorf("%w: %s allows %d characters", ErrContentTooLong, platform, limit)
	}
	return nil
}

func (s *schedulerService) callbackURL() (string, error) {
	base := strings.TrimRight(s.cfg.BaseURL, "/")
	if base == "" {
		slog.Error("BASE_URL is not set; posts cannot be scheduled")
		return "", fmt.Errorf("%w: BASE_URL is not set", ErrConfiguration)
	}
	return base + ExecuteCallbackPath, nil
}

func (s *schedulerService) Schedule(ctx context.Context, userID int64, req *transfer.ScheduleRequest) (*transfer.ScheduleResponse, error) {
	if req == nil {
		return nil, errors.New("schedule request is nil")
	}

	scheduledTime, err := ParseScheduledTime(req.ScheduledTime)
	if err != nil {
		return nil, err
	}
	if err := ValidateContent(req.Platform, req.Content); err != nil {
		return nil, err
	}
	if _, err := DelaySeconds(scheduledTime, s.now()); err != nil {
		return nil, err
	}
	destination, err := s.callbackURL()
	if err != nil {
		return nil, err
	}
	if err := s.creds.CheckConnected(ctx, userID, req.Platform); err != nil {
		return nil, err
	}

	originalContent := req.OriginalContent
	if originalContent == "" {
		originalContent = req.Content
	}
	post := &models.Post{
		ID:              uuid.NewString(),
		UserID:          userID,
		Platform:        req.Platform,
		OriginalContent: originalContent,
		AdaptedContent:  req.Content,
		Tone:            req.Tone,
		MediaURL:        nullString(req.MediaURL),
		ScheduledTime:   nullTime(scheduledTime),
		Status:          models.PostStatusScheduled,
	}
	if err := s.pr.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("error creating post: %w", err)
	}

	messageID, err := s.enqueue(ctx, destination, post, scheduledTime, "schedule")
	if err != nil {
		s.markFailed(ctx, post.ID, err.Error())
		return nil, err
	}

	if err := s.installJob(ctx, post.ID, messageID); err != nil {
		return nil, err
	}

	metrics.PostsScheduled.WithLabelValues(post.Platform).Inc()
	slog.Info("post scheduled", "post_id", post.ID, "platform", post.Platform, "message_id", messageID, "scheduled_time", scheduledTime)
	return &transfer.ScheduleResponse{Success: true, PostID: post.ID, MessageID: messageID}, nil
}

func (s *schedulerService) SaveDraft(ctx context.Context, userID int64, req *transfer.DraftRequest) (*models.Post, error) {
	if req == nil {
		return nil, errors.New("draft request is nil")
	}
	if err := ValidateContent(req.Platform, req.Content); err != nil {
		return nil, err
	}

	originalContent := req.OriginalContent
	if originalContent == "" {
		originalContent = req.Content
	}
	post := &models.Post{
		ID:              uuid.NewString(),
		UserID:          userID,
		Platform:        req.Platform,
		OriginalContent: originalContent,
		AdaptedContent:  req.Content,
		Tone:            req.Tone,
		MediaURL:        nullString(req.MediaURL),
		Status:          models.PostStatusDraft,
		IsDraft:         true,
	}
	if err := s.pr.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("error saving draft: %w", err)
	}
	return post, nil
}

func (s *schedulerService) ScheduleDraft(ctx context.Context, userID int64, postID string, req *transfer.ScheduleDraftRequest) (*transfer.ScheduleResponse, error) {
	post, err := s.ownedPost(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostStatusDraft {
		return nil, ErrNotDraft
	}

	scheduledTime, err := ParseScheduledTime(req.ScheduledTime)
	if err != nil {
		return nil, err
	}
	if _, err := DelaySeconds(scheduledTime, s.now()); err != nil {
		return nil, err
	}
	if err := ValidateContent(post.Platform, post.AdaptedContent); err != nil {
		return nil, err
	}
	destination, err := s.callbackURL()
	if err != nil {
		return nil, err
	}
	if err := s.creds.CheckConnected(ctx, userID, post.Platform); err != nil {
		return nil, err
	}

	if err := s.pr.MarkScheduled(ctx, post.ID, scheduledTime); err != nil {
		return nil, fmt.Errorf("error scheduling draft: %w", err)
	}

	messageID, err := s.enqueue(ctx, destination, post, scheduledTime, "schedule_draft")
	if err != nil {
		if _, rbErr := s.pr.CancelScheduled(ctx, []string{post.ID}, userID); rbErr != nil {
			slog.Error("failed to return post to drafts", "post_id", post.ID, "error", rbErr)
		}
		return nil, err
	}

	if err := s.installJob(ctx, post.ID, messageID); err != nil {
		return nil, err
	}

	metrics.PostsScheduled.WithLabelValues(post.Platform).Inc()
	slog.Info("draft scheduled", "post_id", post.ID, "message_id", messageID, "scheduled_time", scheduledTime)
	return &transfer.ScheduleResponse{Success: true, PostID: post.ID, MessageID: messageID}, nil
}

// RetryPost re-arms a failed post with a fresh delayed job. The status is
// flipped to scheduled before publishing and flipped back to failed if the
// queue refuses the job.
func (s *schedulerService) RetryPost(ctx context.Context, postID string, userID int64) (*transfer.ScheduleResponse, error) {
	post, err := s.ownedPost(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostStatusFailed {
		return nil, ErrInvalidState
	}

	destination, err := s.callbackURL()
	if err != nil {
		return nil, err
	}

	now := s.now()
	fireAt := now.Add(retryFireBuffer)
	if post.ScheduledTime.Valid {
		if _, err := DelaySeconds(post.ScheduledTime.Time, now); err == nil {
			fireAt = post.ScheduledTime.Time
		}
	}

	if err := s.pr.MarkScheduled(ctx, post.ID, fireAt); err != nil {
		return nil, fmt.Errorf("error resetting post status: %w", err)
	}

	if post.HasLiveJob() {
		cancelJob(ctx, s.queue, post.ID, post.JobReference.String)
	}

	messageID, err := s.enqueue(ctx, destination, post, fireAt, "retry")
	if err != nil {
		s.markFailed(ctx, post.ID, err.Error())
		return nil, err
	}

	if err := s.installJob(ctx, post.ID, messageID); err != nil {
		return nil, err
	}

	slog.Info("post retry queued", "post_id", post.ID, "message_id", messageID, "fire_at", fireAt)
	return &transfer.ScheduleResponse{Success: true, PostID: post.ID, MessageID: messageID}, nil
}

// BatchSchedule schedules every item independently; one item failing never
// affects the others.
func (s *schedulerService) BatchSchedule(ctx context.Context, userID int64, req *transfer.BatchScheduleRequest) (*transfer.BatchScheduleResponse, error) {
	if req == nil || len(req.Posts) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(req.Posts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: at most %d posts per request", ErrBatchTooLarge, MaxBatchSize)
	}

	results := make([]transfer.BatchItemResult, len(req.Posts))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, batchConcurrency)

	for i, item := range req.Posts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(i int, item transfer.BatchPost) {
			defer wg.Done()
			defer func() { <-semaphore }()

			resp, err := s.Schedule(ctx, userID, &transfer.ScheduleRequest{
				Platform:        item.Platform,
				Content:         item.Content,
				OriginalContent: item.Topic,
				MediaURL:        item.MediaURL,
				ScheduledTime:   item.ScheduledTime,
			})
			if err != nil {
				results[i] = transfer.BatchItemResult{Index: i, Error: err.Error()}
				return
			}
			results[i] = transfer.BatchItemResult{Index: i, Success: true, PostID: resp.PostID, MessageID: resp.MessageID}
		}(i, item)
	}
	wg.Wait()

	out := &transfer.BatchScheduleResponse{Total: len(results), Results: results}
	for _, r := range results {
		if r.Success {
			out.Scheduled++
		} else {
			out.Failed++
		}
	}
	out.Success = out.Scheduled > 0
	return out, nil
}

func (s *schedulerService) ownedPost(ctx context.Context, postID string, userID int64) (*models.Post, error) {
	if _, err := uuid.Parse(postID); err != nil {
		return nil, ErrPostNotFound
	}
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	if post.UserID != userID {
		return nil, ErrForbidden
	}
	return post, nil
}

func (s *schedulerService) enqueue(ctx context.Context, destination string, post *models.Post, fireAt time.Time, operation string) (string, error) {
	return publishJob(ctx, s.queue, s.policy, destination, post, fireAt, s.now(), operation)
}

// installJob records the job reference. If that write fails the job is
// orphaned; it is cancelled here and the stale-schedule sweep settles the row.
func (s *schedulerService) installJob(ctx context.Context, postID, messageID string) error {
	if err := s.pr.SetJobReference(ctx, postID, messageID); err != nil {
		slog.Error("job reference not persisted", "post_id", postID, "message_id", messageID, "error", err)
		cancelJob(ctx, s.queue, postID, messageID)
		s.markFailed(ctx, postID, "scheduled job could not be recorded")
		return fmt.Errorf("error saving job reference: %w", err)
	}
	return nil
}

func (s *schedulerService) markFailed(ctx context.Context, postID, message string) {
	if err := s.pr.MarkFailed(ctx, postID, retry.SanitizeMessage(message)); err != nil {
		slog.Error("failed to mark post as failed", "post_id", postID, "error", err)
	}
}

func publishJob(ctx context.Context, q queue.Client, policy retry.Policy, destination string, post *models.Post, fireAt, now time.Time, operation string) (string, error) {
	seconds, err := DelaySeconds(fireAt, now)
	if err != nil {
		return "", err
	}

	messageID, err := q.Publish(ctx, queue.Message{
		Destination: destination,
		Body: transfer.ExecutePayload{
			PostID:   post.ID,
			Platform: post.Platform,
			Content:  post.AdaptedContent,
			UserID:   post.UserID,
			MediaURL: post.MediaURL.String,
		},
		Delay:  time.Duration(seconds) * time.Second,
		Policy: policy,
	})
	if err != nil {
		metrics.QueuePublishFailures.WithLabelValues(operation).Inc()
		slog.Error("queue publish failed", "post_id", post.ID, "operation", operation, "error", err)
		return "", fmt.Errorf("%w: %v", ErrQueuePublish, err)
	}
	return messageID, nil
}

// cancelJob asks the queue to drop a pending job. Failures are only logged:
// a job that fires anyway is ignored by the executor's status guard.
func cancelJob(ctx context.Context, q queue.Client, postID, messageID string) {
	if messageID == "" {
		return
	}
	if err := q.Cancel(ctx, messageID); err != nil {
		if errors.Is(err, queue.ErrMessageNotFound) {
			slog.Info("queue job already gone", "post_id", postID, "message_id", messageID)
			return
		}
		metrics.QueueCancelFailures.Inc()
		slog.Warn("queue cancel failed", "post_id", postID, "message_id", messageID, "error", err)
	}
}
