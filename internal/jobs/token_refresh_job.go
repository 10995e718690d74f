package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
)

const (
	refreshWindow      = 30 * time.Minute
	refreshConcurrency = 10
)

type TokenRefreshJob struct {
	sr    repository.SocialAccountRepository
	creds service.CredentialService
	now   func() time.Time
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, creds service.CredentialService) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr:    sr,
		creds: creds,
		now:   time.Now,
	}
}

// RefreshTokens renews every token that expires within the next 30 minutes so
// that posts firing soon do not have to refresh on the hot path.
func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	accounts, err := c.sr.ListExpiringBefore(ctx, c.now().Add(refreshWindow))
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	semaphore := make(chan struct{}, refreshConcurrency)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if _, err := c.creds.Refresh(ctx, acc); err != nil {
				slog.Info("Unable to refresh token", "platform", acc.Platform, "user_id", acc.UserID, "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(acc)
	}
	wg.Wait()

	if len(accounts) > 0 {
		slog.Info("token refresh finished", "accounts", len(accounts), "failed", failed)
	}
}
