package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/retry"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const (
	MaxBulkSize     = 500
	bulkConcurrency = 10
)

// BulkService applies one action to many posts owned by a single user. Every
// query is filtered by owner, so foreign ids are silently excluded.
type BulkService interface {
	Apply(ctx context.Context, userID int64, req *transfer.BulkRequest) (*transfer.BulkResult, error)
}

type bulkService struct {
	cfg    config.Config
	pr     repository.PostRepository
	queue  queue.Client
	policy retry.Policy
	now    func() time.Time
}

func NewBulkService(cfg config.Config, pr repository.PostRepository, q queue.Client) BulkService {
	return &bulkService{
		cfg:    cfg,
		pr:     pr,
		queue:  q,
		policy: retry.DefaultPolicy(),
		now:    time.Now,
	}
}

func (s *bulkService) Apply(ctx context.Context, userID int64, req *transfer.BulkRequest) (*transfer.BulkResult, error) {
	if req == nil {
		return nil, ErrInvalidBulkAction
	}
	ids := uniqueIDs(req.PostIDs)
	if len(ids) == 0 {
		return nil, ErrNoPostIDs
	}
	if len(ids) > MaxBulkSize {
		return nil, fmt.Errorf("%w: at most %d posts per request", ErrBatchTooLarge, MaxBulkSize)
	}

	switch req.Action {
	case transfer.BulkActionDelete:
		return s.delete(ctx, userID, ids)
	case transfer.BulkActionReschedule:
		return s.reschedule(ctx, userID, ids, req.ScheduledTime)
	case transfer.BulkActionDuplicate:
		return s.duplicate(ctx, userID, ids)
	case transfer.BulkActionCancel:
		return s.cancel(ctx, userID, ids)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidBulkAction, req.Action)
	}
}

func (s *bulkService) delete(ctx context.Context, userID int64, ids []string) (*transfer.BulkResult, error) {
	posts, err := s.pr.ListByIDsForUser(ctx, ids, userID)
	if err != nil {
		return nil, err
	}
	for _, post := range posts {
		if post.Status != models.PostStatusPosted && post.HasLiveJob() {
			cancelJob(ctx, s.queue, post.ID, post.JobReference.String)
		}
	}

	deleted, err := s.pr.DeleteByIDsForUser(ctx, ids, userID)
	if err != nil {
		return nil, err
	}

	slog.Info("bulk delete", "user_id", userID, "requested", len(ids), "deleted", deleted)
	return &transfer.BulkResult{
		Success:      true,
		DeletedCount: &deleted,
		Message:      fmt.Sprintf("Deleted %d posts", deleted),
	}, nil
}

// reschedule moves each scheduled post independently: cancel the old job,
// publish a new one, then record it. A post whose new job cannot be published
// is marked failed so it never looks scheduled without a job behind it.
func (s *bulkService) reschedule(ctx context.Context, userID int64, ids []string, value string) (*transfer.BulkResult, error) {
	scheduledTime, err := ParseScheduledTime(value)
	if err != nil {
		return nil, err
	}
	if _, err := DelaySeconds(scheduledTime, s.now()); err != nil {
		return nil, err
	}
	base := strings.TrimRight(s.cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("%w: BASE_URL is not set", ErrConfiguration)
	}
	destination := base + ExecuteCallbackPath

	posts, err := s.pr.ListByIDsForUser(ctx, ids, userID)
	if err != nil {
		return nil, err
	}

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		rescheduled int64
		failures    []transfer.BulkFailure
	)
	semaphore := make(chan struct{}, bulkConcurrency)

	for _, post := range posts {
		if post.Status != models.PostStatusScheduled {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(post *models.Post) {
			defer wg.Done()
			defer func() { <-semaphore }()

			err := s.rescheduleOne(ctx, userID, post, scheduledTime, destination)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, transfer.BulkFailure{PostID: post.ID, Error: err.Error()})
				return
			}
			rescheduled++
		}(post)
	}
	wg.Wait()

	slog.Info("bulk reschedule", "user_id", userID, "rescheduled", rescheduled, "failed", len(failures))
	return &transfer.BulkResult{
		Success:          len(failures) == 0,
		RescheduledCount: &rescheduled,
		FailedCount:      int64(len(failures)),
		Failures:         failures,
		Message:          fmt.Sprintf("Rescheduled %d posts", rescheduled),
	}, nil
}

func (s *bulkService) rescheduleOne(ctx context.Context, userID int64, post *models.Post, scheduledTime time.Time, destination string) error {
	if post.HasLiveJob() {
		cancelJob(ctx, s.queue, post.ID, post.JobReference.String)
	}

	messageID, err := publishJob(ctx, s.queue, s.policy, destination, post, scheduledTime, s.now(), "reschedule")
	if err != nil {
		if markErr := s.pr.MarkFailed(ctx, post.ID, retry.SanitizeMessage("reschedule failed: "+err.Error())); markErr != nil {
			slog.Error("failed to mark post as failed", "post_id", post.ID, "error", markErr)
		}
		return err
	}

	ok, err := s.pr.Reschedule(ctx, post.ID, userID, scheduledTime, messageID)
	if err != nil || !ok {
		cancelJob(ctx, s.queue, post.ID, messageID)
		if err == nil {
			err = errors.New("post is no longer scheduled")
		}
		return err
	}
	return nil
}

func (s *bulkService) duplicate(ctx context.Context, userID int64, ids []string) (*transfer.BulkResult, error) {
	posts, err := s.pr.ListByIDsForUser(ctx, ids, userID)
	if err != nil {
		return nil, err
	}

	var (
		duplicated int64
		createdIDs []string
		failures   []transfer.BulkFailure
	)
	for _, src := range posts {
		draft := &models.Post{
			ID:              uuid.NewString(),
			UserID:          userID,
			Platform:        src.Platform,
			OriginalContent: src.OriginalContent,
			AdaptedContent:  src.AdaptedContent,
			Tone:            src.Tone,
			MediaURL:        src.MediaURL,
			Status:          models.PostStatusDraft,
			IsDraft:         true,
			ParentPostID:    nullString(src.ID),
		}
		if err := s.pr.Create(ctx, draft); err != nil {
			failures = append(failures, transfer.BulkFailure{PostID: src.ID, Error: err.Error()})
			continue
		}
		duplicated++
		createdIDs = append(createdIDs, draft.ID)
	}

	slog.Info("bulk duplicate", "user_id", userID, "duplicated", duplicated, "failed", len(failures))
	return &transfer.BulkResult{
		Success:         len(failures) == 0,
		DuplicatedCount: &duplicated,
		FailedCount:     int64(len(failures)),
		Failures:        failures,
		CreatedIDs:      createdIDs,
		Message:         fmt.Sprintf("Duplicated %d posts as drafts", duplicated),
	}, nil
}

func (s *bulkService) cancel(ctx context.Context, userID int64, ids []string) (*transfer.BulkResult, error) {
	posts, err := s.pr.ListByIDsForUser(ctx, ids, userID)
	if err != nil {
		return nil, err
	}

	var scheduled []string
	for _, post := range posts {
		if post.Status != models.PostStatusScheduled {
			continue
		}
		scheduled = append(scheduled, post.ID)
		if post.HasLiveJob() {
			cancelJob(ctx, s.queue, post.ID, post.JobReference.String)
		}
	}

	var cancelled int64
	if len(scheduled) > 0 {
		cancelled, err = s.pr.CancelScheduled(ctx, scheduled, userID)
		if err != nil {
			return nil, err
		}
	}

	slog.Info("bulk cancel", "user_id", userID, "cancelled", cancelled)
	return &transfer.BulkResult{
		Success:        true,
		CancelledCount: &cancelled,
		Message:        fmt.Sprintf("Cancelled %d posts", cancelled),
	}, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, err := uuid.Parse(id); err != nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
