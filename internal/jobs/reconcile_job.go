package job

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/postflow/internal/metrics"
	"github.com/maheshrc27/postflow/internal/repository"
)

const (
	staleAfter      = 5 * time.Minute
	unconfirmedNote = "scheduled job was never confirmed"
)

// ReconcileJob fails posts that are scheduled but never got a job reference,
// which happens when the process dies between publishing and recording the
// job. Failed posts can then be re-armed through manual retry.
type ReconcileJob struct {
	pr  repository.PostRepository
	now func() time.Time
}

func NewReconcileJob(pr repository.PostRepository) *ReconcileJob {
	return &ReconcileJob{pr: pr, now: time.Now}
}

func (j *ReconcileJob) ReconcileStalePosts() {
	ctx := context.Background()

	posts, err := j.pr.ListStaleScheduled(ctx, j.now().Add(-staleAfter))
	if err != nil {
		slog.Info(err.Error())
		return
	}

	for _, post := range posts {
		err := j.pr.FailUnconfirmed(ctx, post.ID, unconfirmedNote)
		if errors.Is(err, repository.ErrPostNotUpdated) {
			continue
		}
		if err != nil {
			slog.Error("failed to reconcile post", "post_id", post.ID, "error", err)
			continue
		}
		metrics.ReconciledPosts.Inc()
		slog.Warn("stale scheduled post marked failed", "post_id", post.ID, "user_id", post.UserID, "platform", post.Platform)
	}
}
