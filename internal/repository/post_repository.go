package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/postflow/internal/models"
)

var ErrPostNotUpdated = errors.New("post was not updated; it is missing or in a terminal state")

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	ListByUserID(ctx context.Context, userID int64, status string) ([]*models.Post, error)
	ListByIDsForUser(ctx context.Context, ids []string, userID int64) ([]*models.Post, error)
	ListStaleScheduled(ctx context.Context, before time.Time) ([]*models.Post, error)
	SetJobReference(ctx context.Context, id, messageID string) error
	MarkScheduled(ctx context.Context, id string, scheduledTime time.Time) error
	MarkPosted(ctx context.Context, id string, postedAt time.Time, platformPostID, platformPostURL string) error
	MarkFailed(ctx context.Context, id, errorMessage string) error
	FailUnconfirmed(ctx context.Context, id, errorMessage string) error
	Reschedule(ctx context.Context, id string, userID int64, scheduledTime time.Time, messageID string) (bool, error)
	CancelScheduled(ctx context.Context, ids []string, userID int64) (int64, error)
	DeleteByIDsForUser(ctx context.Context, ids []string, userID int64) (int64, error)
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, platform, original_content, adapted_content, tone, media_url,
	scheduled_time, status, posted_at, error_message, qstash_message_id, platform_post_id,
	platform_post_url, is_draft, parent_post_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	err := row.Scan(
		&post.ID,
		&post.UserID,
		&post.Platform,
		&post.OriginalContent,
		&post.AdaptedContent,
		&post.Tone,
		&post.MediaURL,
		&post.ScheduledTime,
		&post.Status,
		&post.PostedAt,
		&post.ErrorMessage,
		&post.JobReference,
		&post.PlatformPostID,
		&post.PlatformPostURL,
		&post.IsDraft,
		&post.ParentPostID,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	query := `
		INSERT INTO posts (id, user_id, platform, original_content, adapted_content, tone, media_url,
			scheduled_time, status, is_draft, parent_post_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		post.ID,
		post.UserID,
		post.Platform,
		post.OriginalContent,
		post.AdaptedContent,
		post.Tone,
		post.MediaURL,
		post.ScheduledTime,
		post.Status,
		post.IsDraft,
		post.ParentPostID,
	).Scan(&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) ListByUserID(ctx context.Context, userID int64, status string) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1`
	args := []any{userID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY scheduled_time ASC NULLS LAST, created_at DESC`
	return r.list(ctx, query, args...)
}

// ListByIDsForUser returns only the rows among ids that belong to userID.
func (r *postRepository) ListByIDsForUser(ctx context.Context, ids []string, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = ANY($1::uuid[]) AND user_id = $2`
	return r.list(ctx, query, pq.Array(ids), userID)
}

func (r *postRepository) ListStaleScheduled(ctx context.Context, before time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE status = 'scheduled' AND qstash_message_id IS NULL AND scheduled_time < $1`
	return r.list(ctx, query, before)
}

func (r *postRepository) list(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) SetJobReference(ctx context.Context, id, messageID string) error {
	query := `
		UPDATE posts
		SET qstash_message_id = $1,
			updated_at = $2
		WHERE id = $3 AND status = 'scheduled'
	`
	return r.execOne(ctx, query, messageID, time.Now(), id)
}

// MarkScheduled moves a draft or failed post to scheduled and clears the last error.
func (r *postRepository) MarkScheduled(ctx context.Context, id string, scheduledTime time.Time) error {
	query := `
		UPDATE posts
		SET status = 'scheduled',
			scheduled_time = $1,
			is_draft = false,
			error_message = NULL,
			updated_at = $2
		WHERE id = $3 AND status <> 'posted'
	`
	return r.execOne(ctx, query, scheduledTime, time.Now(), id)
}

func (r *postRepository) MarkPosted(ctx context.Context, id string, postedAt time.Time, platformPostID, platformPostURL string) error {
	query := `
		UPDATE posts
		SET status = 'posted',
			posted_at = $1,
			error_message = NULL,
			platform_post_id = NULLIF($2, ''),
			platform_post_url = NULLIF($3, ''),
			updated_at = $4
		WHERE id = $5 AND status IN ('scheduled', 'failed')
	`
	return r.execOne(ctx, query, postedAt, platformPostID, platformPostURL, time.Now(), id)
}

func (r *postRepository) MarkFailed(ctx context.Context, id, errorMessage string) error {
	query := `
		UPDATE posts
		SET status = 'failed',
			error_message = $1,
			updated_at = $2
		WHERE id = $3 AND status <> 'posted'
	`
	return r.execOne(ctx, query, errorMessage, time.Now(), id)
}

// FailUnconfirmed fails a scheduled post only while it still has no job reference.
func (r *postRepository) FailUnconfirmed(ctx context.Context, id, errorMessage string) error {
	query := `
		UPDATE posts
		SET status = 'failed',
			error_message = $1,
			updated_at = $2
		WHERE id = $3 AND status = 'scheduled' AND qstash_message_id IS NULL
	`
	return r.execOne(ctx, query, errorMessage, time.Now(), id)
}

// Reschedule installs a new fire time and job reference on a scheduled post.
// It reports false when the row is not owned by userID or is no longer scheduled.
func (r *postRepository) Reschedule(ctx context.Context, id string, userID int64, scheduledTime time.Time, messageID string) (bool, error) {
	query := `
		UPDATE posts
		SET scheduled_time = $1,
			qstash_message_id = $2,
			updated_at = $3
		WHERE id = $4 AND user_id = $5 AND status = 'scheduled'
	`
	result, err := r.db.ExecContext(ctx, query, scheduledTime, messageID, time.Now(), id, userID)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) CancelScheduled(ctx context.Context, ids []string, userID int64) (int64, error) {
	query := `
		UPDATE posts
		SET status = 'draft',
			is_draft = true,
			scheduled_time = NULL,
			qstash_message_id = NULL,
			updated_at = $1
		WHERE id = ANY($2::uuid[]) AND user_id = $3 AND status = 'scheduled'
	`
	return r.execCount(ctx, query, time.Now(), pq.Array(ids), userID)
}

// DeleteByIDsForUser removes the caller's non-posted rows among ids.
func (r *postRepository) DeleteByIDsForUser(ctx context.Context, ids []string, userID int64) (int64, error) {
	query := `DELETE FROM posts WHERE id = ANY($1::uuid[]) AND user_id = $2 AND status <> 'posted'`
	return r.execCount(ctx, query, pq.Array(ids), userID)
}

func (r *postRepository) execOne(ctx context.Context, query string, args ...any) error {
	affected, err := r.execCount(ctx, query, args...)
	if err != nil {
		return err
	}
	if affected != 1 {
		slog.Info(ErrPostNotUpdated.Error())
		return ErrPostNotUpdated
	}
	return nil
}

func (r *postRepository) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return affected, nil
}
