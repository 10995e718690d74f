package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const testSecretKey = "0123456789abcdef0123456789abcdef"

func testConfig() config.Config {
	return config.Config{
		BaseURL:   "https://postflow.example.com",
		SecretKey: testSecretKey,
	}
}

// memPostRepo is an in-memory PostRepository that honours the same status
// guards as the SQL implementation.
type memPostRepo struct {
	mu    sync.Mutex
	posts map[string]*models.Post

	createErr       error
	setJobRefErr    error
	markPostedCalls int
}

var _ repository.PostRepository = (*memPostRepo)(nil)

func newMemPostRepo(posts ...*models.Post) *memPostRepo {
	r := &memPostRepo{posts: map[string]*models.Post{}}
	for _, p := range posts {
		r.posts[p.ID] = p
	}
	return r
}

func (r *memPostRepo) get(id string) *models.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (r *memPostRepo) Create(_ context.Context, post *models.Post) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	cp := *post
	r.posts[post.ID] = &cp
	return nil
}

func (r *memPostRepo) GetByID(_ context.Context, id string) (*models.Post, error) {
	return r.get(id), nil
}

func (r *memPostRepo) ListByUserID(_ context.Context, userID int64, status string) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.UserID == userID && (status == "" || p.Status == status) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memPostRepo) ListByIDsForUser(_ context.Context, ids []string, userID int64) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, id := range ids {
		if p, ok := r.posts[id]; ok && p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memPostRepo) ListStaleScheduled(_ context.Context, before time.Time) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.Status == models.PostStatusScheduled && !p.JobReference.Valid && p.ScheduledTime.Time.Before(before) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memPostRepo) update(id string, allowed func(*models.Post) bool, apply func(*models.Post)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok || !allowed(p) {
		return repository.ErrPostNotUpdated
	}
	apply(p)
	p.UpdatedAt = time.Now()
	return nil
}

func (r *memPostRepo) SetJobReference(_ context.Context, id, messageID string) error {
	if r.setJobRefErr != nil {
		return r.setJobRefErr
	}
	return r.update(id,
		func(p *models.Post) bool { return p.Status == models.PostStatusScheduled },
		func(p *models.Post) { p.JobReference = nullString(messageID) })
}

func (r *memPostRepo) MarkScheduled(_ context.Context, id string, scheduledTime time.Time) error {
	return r.update(id,
		func(p *models.Post) bool { return p.Status != models.PostStatusPosted },
		func(p *models.Post) {
			p.Status = models.PostStatusScheduled
			p.ScheduledTime = nullTime(scheduledTime)
			p.IsDraft = false
			p.ErrorMessage = nullString("")
		})
}

func (r *memPostRepo) MarkPosted(_ context.Context, id string, postedAt time.Time, platformPostID, platformPostURL string) error {
	r.mu.Lock()
	r.markPostedCalls++
	r.mu.Unlock()
	return r.update(id,
		func(p *models.Post) bool {
			return p.Status == models.PostStatusScheduled || p.Status == models.PostStatusFailed
		},
		func(p *models.Post) {
			p.Status = models.PostStatusPosted
			p.PostedAt = nullTime(postedAt)
			p.ErrorMessage = nullString("")
			p.PlatformPostID = nullString(platformPostID)
			p.PlatformPostURL = nullString(platformPostURL)
		})
}

func (r *memPostRepo) MarkFailed(_ context.Context, id, errorMessage string) error {
	return r.update(id,
		func(p *models.Post) bool { return p.Status != models.PostStatusPosted },
		func(p *models.Post) {
			p.Status = models.PostStatusFailed
			p.ErrorMessage = nullString(errorMessage)
		})
}

func (r *memPostRepo) FailUnconfirmed(_ context.Context, id, errorMessage string) error {
	return r.update(id,
		func(p *models.Post) bool { return p.Status == models.PostStatusScheduled && !p.JobReference.Valid },
		func(p *models.Post) {
			p.Status = models.PostStatusFailed
			p.ErrorMessage = nullString(errorMessage)
		})
}

func (r *memPostRepo) Reschedule(_ context.Context, id string, userID int64, scheduledTime time.Time, messageID string) (bool, error) {
	err := r.update(id,
		func(p *models.Post) bool { return p.UserID == userID && p.Status == models.PostStatusScheduled },
		func(p *models.Post) {
			p.ScheduledTime = nullTime(scheduledTime)
			p.JobReference = nullString(messageID)
		})
	return err == nil, nil
}

func (r *memPostRepo) CancelScheduled(_ context.Context, ids []string, userID int64) (int64, error) {
	var n int64
	for _, id := range ids {
		err := r.update(id,
			func(p *models.Post) bool { return p.UserID == userID && p.Status == models.PostStatusScheduled },
			func(p *models.Post) {
				p.Status = models.PostStatusDraft
				p.IsDraft = true
				p.ScheduledTime = nullTime(time.Time{})
				p.JobReference = nullString("")
			})
		if err == nil {
			n++
		}
	}
	return n, nil
}

func (r *memPostRepo) DeleteByIDsForUser(_ context.Context, ids []string, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		if p, ok := r.posts[id]; ok && p.UserID == userID && p.Status != models.PostStatusPosted {
			delete(r.posts, id)
			n++
		}
	}
	return n, nil
}

type fakeQueue struct {
	mu         sync.Mutex
	published  []queue.Message
	cancelled  []string
	publishErr error
	cancelErr  error
	seq        int
}

var _ queue.Client = (*fakeQueue)(nil)

func (q *fakeQueue) Publish(_ context.Context, msg queue.Message) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return "", q.publishErr
	}
	q.seq++
	q.published = append(q.published, msg)
	return fmt.Sprintf("msg_%d", q.seq), nil
}

func (q *fakeQueue) Cancel(_ context.Context, messageID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelled = append(q.cancelled, messageID)
	return q.cancelErr
}

func (q *fakeQueue) lastPayload() transfer.ExecutePayload {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.published[len(q.published)-1].Body.(transfer.ExecutePayload)
}

type stubCredentials struct {
	checkFn  func(userID int64, platform string) error
	accessFn func(userID int64, platform string) (*models.SocialAccount, string, error)
}

var _ CredentialService = (*stubCredentials)(nil)

func connectedCredentials() *stubCredentials {
	return &stubCredentials{}
}

func (c *stubCredentials) CheckConnected(_ context.Context, userID int64, platform string) error {
	if c.checkFn != nil {
		return c.checkFn(userID, platform)
	}
	return nil
}

func (c *stubCredentials) AccessToken(_ context.Context, userID int64, platform string) (*models.SocialAccount, string, error) {
	if c.accessFn != nil {
		return c.accessFn(userID, platform)
	}
	return &models.SocialAccount{ID: 1, UserID: userID, Platform: platform, AccountID: "acc", AccountUsername: "handle"}, "token", nil
}

func (c *stubCredentials) Refresh(context.Context, *models.SocialAccount) (string, error) {
	return "", errors.New("not implemented")
}

type stubPublisher struct {
	mu      sync.Mutex
	calls   int
	publish func(req PublishRequest) (*transfer.PublishResult, error)
}

func (p *stubPublisher) Publish(_ context.Context, _ *models.SocialAccount, _ string, req PublishRequest) (*transfer.PublishResult, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.publish(req)
}

func (p *stubPublisher) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type memHistoryRepo struct {
	mu      sync.Mutex
	entries []*models.PostingHistory
}

var _ repository.PostingHistoryRepository = (*memHistoryRepo)(nil)

func (r *memHistoryRepo) Create(_ context.Context, ph *models.PostingHistory) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ph
	cp.ID = int64(len(r.entries) + 1)
	r.entries = append(r.entries, &cp)
	return cp.ID, nil
}

func (r *memHistoryRepo) ListByPostID(_ context.Context, postID string) ([]*models.PostingHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PostingHistory
	for _, ph := range r.entries {
		if ph.PostID == postID {
			cp := *ph
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memHistoryRepo) outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, ph := range r.entries {
		out = append(out, ph.Outcome)
	}
	return out
}
