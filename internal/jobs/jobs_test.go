package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var postRowColumns = []string{
	"id", "user_id", "platform", "original_content", "adapted_content", "tone", "media_url",
	"scheduled_time", "status", "posted_at", "error_message", "qstash_message_id", "platform_post_id",
	"platform_post_url", "is_draft", "parent_post_id", "created_at", "updated_at",
}

func TestReconcileStalePosts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	stale := fixedNow.Add(-10 * time.Minute)
	rows := sqlmock.NewRows(postRowColumns).
		AddRow("p1", int64(7), "twitter", "", "hello", "", nil, stale, "scheduled", nil, nil, nil, nil, nil, false, nil, stale, stale).
		AddRow("p2", int64(8), "linkedin", "", "hello", "", nil, stale, "scheduled", nil, nil, nil, nil, nil, false, nil, stale, stale)
	mock.ExpectQuery(`(?s)SELECT .+ FROM posts\s+WHERE status = 'scheduled' AND qstash_message_id IS NULL AND scheduled_time < \$1`).
		WithArgs(fixedNow.Add(-5 * time.Minute)).
		WillReturnRows(rows)
	mock.ExpectExec(`(?s)UPDATE posts .+ qstash_message_id IS NULL`).
		WithArgs(unconfirmedNote, sqlmock.AnyArg(), "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// p2 got its job reference between the list and the update
	mock.ExpectExec(`(?s)UPDATE posts .+ qstash_message_id IS NULL`).
		WithArgs(unconfirmedNote, sqlmock.AnyArg(), "p2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	j := NewReconcileJob(repository.NewPostRepository(db))
	j.now = func() time.Time { return fixedNow }
	j.ReconcileStalePosts()

	require.NoError(t, mock.ExpectationsWereMet())
}

type stubAccounts struct {
	accounts []*models.SocialAccount
	before   time.Time
}

func (s *stubAccounts) GetByUserAndPlatform(context.Context, int64, string) (*models.SocialAccount, error) {
	return nil, nil
}

func (s *stubAccounts) ListExpiringBefore(_ context.Context, before time.Time) ([]*models.SocialAccount, error) {
	s.before = before
	return s.accounts, nil
}

func (s *stubAccounts) SetToken(context.Context, int64, string, *models.SocialAccount) error {
	return nil
}

type recordingCredentials struct {
	mu        sync.Mutex
	refreshed []int64
}

func (c *recordingCredentials) AccessToken(context.Context, int64, string) (*models.SocialAccount, string, error) {
	return nil, "", errors.New("not used")
}

func (c *recordingCredentials) CheckConnected(context.Context, int64, string) error {
	return nil
}

func (c *recordingCredentials) Refresh(_ context.Context, account *models.SocialAccount) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshed = append(c.refreshed, account.ID)
	if account.ID == 2 {
		return "", errors.New("invalid_grant")
	}
	return "fresh", nil
}

func TestRefreshTokens(t *testing.T) {
	accounts := &stubAccounts{accounts: []*models.SocialAccount{
		{ID: 1, Platform: models.PlatformTwitter},
		{ID: 2, Platform: models.PlatformLinkedIn},
		{ID: 3, Platform: models.PlatformInstagram},
	}}
	creds := &recordingCredentials{}

	j := NewTokenRefreshJob(accounts, creds)
	j.now = func() time.Time { return fixedNow }
	j.RefreshTokens()

	assert.Equal(t, fixedNow.Add(30*time.Minute), accounts.before)
	assert.ElementsMatch(t, []int64{1, 2, 3}, creds.refreshed)
}
