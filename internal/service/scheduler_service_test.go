package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/retry"
	"github.com/maheshrc27/postflow/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestScheduler(repo *memPostRepo, q *fakeQueue, creds CredentialService) *schedulerService {
	return &schedulerService{
		cfg:    testConfig(),
		pr:     repo,
		creds:  creds,
		queue:  q,
		policy: retry.DefaultPolicy(),
		now:    func() time.Time { return fixedNow },
	}
}

func scheduleRequest(at time.Time) *transfer.ScheduleRequest {
	return &transfer.ScheduleRequest{
		Platform:      models.PlatformTwitter,
		Content:       "Hello",
		ScheduledTime: at.Format(time.RFC3339),
	}
}

func TestDelaySeconds(t *testing.T) {
	_, err := DelaySeconds(fixedNow.Add(-time.Second), fixedNow)
	assert.ErrorIs(t, err, ErrInvalidScheduleTime)

	_, err = DelaySeconds(fixedNow, fixedNow)
	assert.ErrorIs(t, err, ErrInvalidScheduleTime)

	seconds, err := DelaySeconds(fixedNow.Add(time.Hour), fixedNow)
	require.NoError(t, err)
	assert.InDelta(t, 3600, seconds, 1)
}

func TestValidateContent(t *testing.T) {
	assert.ErrorIs(t, ValidateContent("myspace", "hi"), ErrInvalidPlatform)
	assert.ErrorIs(t, ValidateContent(models.PlatformTwitter, "   "), ErrEmptyContent)
	assert.ErrorIs(t, ValidateContent(models.PlatformTwitter, string(make([]rune, 281))), ErrContentTooLong)
	assert.NoError(t, ValidateContent(models.PlatformLinkedIn, "A post"))
}

func TestSchedule_RejectsPastTime(t *testing.T) {
	repo := newMemPostRepo()
	q := &fakeQueue{}
	s := newTestScheduler(repo, q, connectedCredentials())

	_, err := s.Schedule(context.Background(), 7, scheduleRequest(fixedNow.Add(-time.Second)))
	assert.ErrorIs(t, err, ErrInvalidScheduleTime)
	assert.Empty(t, q.published)
	assert.Empty(t, repo.posts)
}

func TestSchedule_PublishesJobAndRecordsReference(t *testing.T) {
	repo := newMemPostRepo()
	q := &fakeQueue{}
	s := newTestScheduler(repo, q, connectedCredentials())

	resp, err := s.Schedule(context.Background(), 7, scheduleRequest(fixedNow.Add(time.Hour)))
	require.NoError(t, err)
	assert.True(t, resp.Success)

	require.Len(t, q.published, 1)
	msg := q.published[0]
	assert.Equal(t, "https://postflow.example.com"+ExecuteCallbackPath, msg.Destination)
	assert.InDelta(t, 3600, msg.Delay.Seconds(), 1)
	assert.Equal(t, retry.DefaultMaxRetries, msg.Policy.MaxRetries)

	payload := q.lastPayload()
	assert.Equal(t, resp.PostID, payload.PostID)
	assert.Equal(t, "Hello", payload.Content)
	assert.Equal(t, int64(7), payload.UserID)

	post := repo.get(resp.PostID)
	require.NotNil(t, post)
	assert.Equal(t, models.PostStatusScheduled, post.Status)
	assert.Equal(t, resp.MessageID, post.JobReference.String)
	assert.Equal(t, "Hello", post.OriginalContent)
}

func TestSchedule_RequiresBaseURL(t *testing.T) {
	repo := newMemPostRepo()
	q := &fakeQueue{}
	s := newTestScheduler(repo, q, connectedCredentials())
	s.cfg.BaseURL = ""

	_, err := s.Schedule(context.Background(), 7, scheduleRequest(fixedNow.Add(time.Hour)))
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Empty(t, q.published)
	assert.Empty(t, repo.posts)
}

func TestSchedule_AccountChecks(t *testing.T) {
	for _, want := range []error{ErrAccountNotConnected, ErrTokenExpired} {
		t.Run(want.Error(), func(t *testing.T) {
			repo := newMemPostRepo()
			q := &fakeQueue{}
			creds := &stubCredentials{checkFn: func(int64, string) error { return want }}
			s := newTestScheduler(repo, q, creds)

			_, err := s.Schedule(context.Background(), 7, scheduleRequest(fixedNow.Add(time.Hour)))
			assert.ErrorIs(t, err, want)
			assert.Empty(t, q.published)
		})
	}
}

func TestSchedule_PublishFailureMarksPostFailed(t *testing.T) {
	repo := newMemPostRepo()
	q := &fakeQueue{publishErr: errors.New("redis: connection refused")}
	s := newTestScheduler(repo, q, connectedCredentials())

	_, err := s.Schedule(context.Background(), 7, scheduleRequest(fixedNow.Add(time.Hour)))
	assert.ErrorIs(t, err, ErrQueuePublish)

	require.Len(t, repo.posts, 1)
	for id := range repo.posts {
		post := repo.get(id)
		assert.Equal(t, models.PostStatusFailed, post.Status)
		assert.Contains(t, post.ErrorMessage.String, "connection refused")
	}
}

func TestSchedule_OrphanedJobIsCancelled(t *testing.T) {
	repo := newMemPostRepo()
	repo.setJobRefErr = errors.New("db down")
	q := &fakeQueue{}
	s := newTestScheduler(repo, q, connectedCredentials())

	_, err := s.Schedule(context.Background(), 7, scheduleRequest(fixedNow.Add(time.Hour)))
	require.Error(t, err)
	assert.Equal(t, []string{"msg_1"}, q.cancelled)
}

func failedPost(userID int64, scheduled time.Time) *models.Post {
	return &models.Post{
		ID:             uuid.NewString(),
		UserID:         userID,
		Platform:       models.PlatformLinkedIn,
		AdaptedContent: "Quarterly update",
		ScheduledTime:  nullTime(scheduled),
		Status:         models.PostStatusFailed,
		ErrorMessage:   nullString("503 Service Unavailable"),
		JobReference:   nullString("msg_old"),
	}
}

func TestRetryPost_Preconditions(t *testing.T) {
	owned := failedPost(7, fixedNow.Add(-time.Hour))
	repo := newMemPostRepo(owned)
	s := newTestScheduler(repo, &fakeQueue{}, connectedCredentials())

	_, err := s.RetryPost(context.Background(), uuid.NewString(), 7)
	assert.ErrorIs(t, err, ErrPostNotFound)

	_, err = s.RetryPost(context.Background(), owned.ID, 8)
	assert.ErrorIs(t, err, ErrForbidden)

	for _, status := range []string{models.PostStatusScheduled, models.PostStatusPosted, models.PostStatusDraft} {
		p := failedPost(7, fixedNow.Add(-time.Hour))
		p.Status = status
		repo.posts[p.ID] = p

		_, err := s.RetryPost(context.Background(), p.ID, 7)
		assert.ErrorIs(t, err, ErrInvalidState, status)
	}
}

func TestRetryPost_PastTimeUsesBuffer(t *testing.T) {
	post := failedPost(7, fixedNow.Add(-time.Hour))
	repo := newMemPostRepo(post)
	q := &fakeQueue{}
	s := newTestScheduler(repo, q, connectedCredentials())

	resp, err := s.RetryPost(context.Background(), post.ID, 7)
	require.NoError(t, err)

	require.Len(t, q.published, 1)
	assert.Equal(t, 10*time.Second, q.published[0].Delay)
	assert.Equal(t, []string{"msg_old"}, q.cancelled)

	got := repo.get(post.ID)
	assert.Equal(t, models.PostStatusScheduled, got.Status)
	assert.False(t, got.ErrorMessage.Valid)
	assert.Equal(t, resp.MessageID, got.JobReference.String)
}

func TestRetryPost_FutureTimeIsKept(t *testing.T) {
	post := failedPost(7, fixedNow.Add(30*time.Minute))
	repo := newMemPostRepo(post)
	q := &fakeQueue{}
	s := newTestScheduler(repo, q, connectedCredentials())

	_, err := s.RetryPost(context.Background(), post.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, q.published[0].Delay)
}

func TestRetryPost_RollsBackOnPublishFailure(t *testing.T) {
	post := failedPost(7, fixedNow.Add(-time.Hour))
	repo := newMemPostRepo(post)
	q := &fakeQueue{publishErr: errors.New("queue unavailable")}
	s := newTestScheduler(repo, q, connectedCredentials())

	_, err := s.RetryPost(context.Background(), post.ID, 7)
	assert.ErrorIs(t, err, ErrQueuePublish)

	got := repo.get(post.ID)
	assert.Equal(t, models.PostStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage.String, "queue unavailable")
}

func TestSaveAndScheduleDraft(t *testing.T) {
	repo := newMemPostRepo()
	q := &fakeQueue{}
	s := newTestScheduler(repo, q, connectedCredentials())

	draft, err := s.SaveDraft(context.Background(), 7, &transfer.DraftRequest{Platform: models.PlatformTwitter, Content: "Later"})
	require.NoError(t, err)
	assert.True(t, draft.IsDraft)
	assert.False(t, draft.ScheduledTime.Valid)
	assert.Empty(t, q.published)

	resp, err := s.ScheduleDraft(context.Background(), 7, draft.ID, &transfer.ScheduleDraftRequest{
		ScheduledTime: fixedNow.Add(2 * time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)

	got := repo.get(draft.ID)
	assert.Equal(t, models.PostStatusScheduled, got.Status)
	assert.False(t, got.IsDraft)
	assert.Equal(t, resp.MessageID, got.JobReference.String)

	_, err = s.ScheduleDraft(context.Background(), 7, draft.ID, &transfer.ScheduleDraftRequest{
		ScheduledTime: fixedNow.Add(3 * time.Hour).Format(time.RFC3339),
	})
	assert.ErrorIs(t, err, ErrNotDraft)
}

func TestScheduleDraft_PublishFailureReturnsToDraft(t *testing.T) {
	repo := newMemPostRepo()
	q := &fakeQueue{}
	s := newTestScheduler(repo, q, connectedCredentials())

	draft, err := s.SaveDraft(context.Background(), 7, &transfer.DraftRequest{Platform: models.PlatformTwitter, Content: "Later"})
	require.NoError(t, err)

	q.publishErr = errors.New("queue unavailable")
	_, err = s.ScheduleDraft(context.Background(), 7, draft.ID, &transfer.ScheduleDraftRequest{
		ScheduledTime: fixedNow.Add(2 * time.Hour).Format(time.RFC3339),
	})
	assert.ErrorIs(t, err, ErrQueuePublish)

	got := repo.get(draft.ID)
	assert.Equal(t, models.PostStatusDraft, got.Status)
	assert.False(t, got.ScheduledTime.Valid)
}

func TestBatchSchedule(t *testing.T) {
	repo := newMemPostRepo()
	q := &fakeQueue{}
	s := newTestScheduler(repo, q, connectedCredentials())

	at := fixedNow.Add(time.Hour).Format(time.RFC3339)
	resp, err := s.BatchSchedule(context.Background(), 7, &transfer.BatchScheduleRequest{
		Posts: []transfer.BatchPost{
			{Platform: models.PlatformTwitter, Content: "one", ScheduledTime: at},
			{Platform: "myspace", Content: "two", ScheduledTime: at},
			{Platform: models.PlatformLinkedIn, Content: "three", ScheduledTime: fixedNow.Add(-time.Hour).Format(time.RFC3339)},
			{Platform: models.PlatformLinkedIn, Content: "four", ScheduledTime: at, Topic: "launch"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Total)
	assert.Equal(t, 2, resp.Scheduled)
	assert.Equal(t, 2, resp.Failed)
	assert.True(t, resp.Results[0].Success)
	assert.False(t, resp.Results[1].Success)
	assert.False(t, resp.Results[2].Success)
	assert.True(t, resp.Results[3].Success)
	assert.Equal(t, "launch", repo.get(resp.Results[3].PostID).OriginalContent)
}

func TestBatchSchedule_Cap(t *testing.T) {
	s := newTestScheduler(newMemPostRepo(), &fakeQueue{}, connectedCredentials())

	posts := make([]transfer.BatchPost, MaxBatchSize+1)
	for i := range posts {
		posts[i] = transfer.BatchPost{Platform: models.PlatformTwitter, Content: fmt.Sprint(i)}
	}
	_, err := s.BatchSchedule(context.Background(), 7, &transfer.BatchScheduleRequest{Posts: posts})
	assert.ErrorIs(t, err, ErrBatchTooLarge)

	_, err = s.BatchSchedule(context.Background(), 7, &transfer.BatchScheduleRequest{})
	assert.ErrorIs(t, err, ErrEmptyBatch)
}
