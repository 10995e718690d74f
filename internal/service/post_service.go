package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
)

type PostService interface {
	List(ctx context.Context, userID int64, status string) ([]*models.Post, error)
	PostInfo(ctx context.Context, postID string, userID int64) (*models.Post, error)
	Remove(ctx context.Context, userID int64, postID string) error
	History(ctx context.Context, postID string, userID int64) ([]*models.PostingHistory, error)
}

type postService struct {
	pr      repository.PostRepository
	history repository.PostingHistoryRepository
	queue   queue.Client
}

func NewPostService(pr repository.PostRepository, history repository.PostingHistoryRepository, q queue.Client) PostService {
	return &postService{
		pr:      pr,
		history: history,
		queue:   q,
	}
}

func (s *postService) List(ctx context.Context, userID int64, status string) ([]*models.Post, error) {
	var err error

	if userID == 0 {
		err = errors.New("User is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	switch status {
	case "", models.PostStatusDraft, models.PostStatusScheduled, models.PostStatusPosted, models.PostStatusFailed:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}

	posts, err := s.pr.ListByUserID(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("Error getting posts")
	}
	return posts, nil
}

func (s *postService) PostInfo(ctx context.Context, postID string, userID int64) (*models.Post, error) {
	if _, err := uuid.Parse(postID); err != nil {
		return nil, ErrPostNotFound
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("Error getting post info")
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	if post.UserID != userID {
		return nil, ErrForbidden
	}
	return post, nil
}

// Remove deletes one unpublished post, cancelling its pending job first.
func (s *postService) Remove(ctx context.Context, userID int64, postID string) error {
	post, err := s.PostInfo(ctx, postID, userID)
	if err != nil {
		return err
	}
	if post.Status == models.PostStatusPosted {
		return ErrAlreadyPosted
	}

	if post.HasLiveJob() {
		cancelJob(ctx, s.queue, post.ID, post.JobReference.String)
	}

	deleted, err := s.pr.DeleteByIDsForUser(ctx, []string{post.ID}, userID)
	if err != nil {
		return fmt.Errorf("Error removing post")
	}
	if deleted == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (s *postService) History(ctx context.Context, postID string, userID int64) ([]*models.PostingHistory, error) {
	if _, err := s.PostInfo(ctx, postID, userID); err != nil {
		return nil, err
	}

	entries, err := s.history.ListByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("Error getting post history")
	}
	return entries, nil
}
