package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/metrics"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/pkg/utils"
	"golang.org/x/oauth2"
)

// TokenRefresher trades a refresh token for a new access token.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

type CredentialService interface {
	// AccessToken returns the platform account for userID together with a
	// decrypted, unexpired access token, refreshing it first when needed.
	AccessToken(ctx context.Context, userID int64, platform string) (*models.SocialAccount, string, error)
	// CheckConnected fails when the account is missing or its token has lapsed.
	CheckConnected(ctx context.Context, userID int64, platform string) error
	Refresh(ctx context.Context, account *models.SocialAccount) (string, error)
}

type credentialService struct {
	cfg        config.Config
	sa         repository.SocialAccountRepository
	refreshers map[string]TokenRefresher
	now        func() time.Time
}

func NewCredentialService(cfg config.Config, sa repository.SocialAccountRepository, refreshers map[string]TokenRefresher) CredentialService {
	return &credentialService{
		cfg:        cfg,
		sa:         sa,
		refreshers: refreshers,
		now:        time.Now,
	}
}

func (s *credentialService) CheckConnected(ctx context.Context, userID int64, platform string) error {
	account, err := s.sa.GetByUserAndPlatform(ctx, userID, platform)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("%w: no %s account for this user", ErrAccountNotConnected, platform)
	}
	if account.IsExpired(s.now()) {
		return fmt.Errorf("%w: reconnect your %s account", ErrTokenExpired, platform)
	}
	return nil
}

func (s *credentialService) AccessToken(ctx context.Context, userID int64, platform string) (*models.SocialAccount, string, error) {
	account, err := s.sa.GetByUserAndPlatform(ctx, userID, platform)
	if err != nil {
		return nil, "", err
	}
	if account == nil {
		return nil, "", fmt.Errorf("%w: no %s account for this user", ErrAccountNotConnected, platform)
	}

	if !account.IsExpired(s.now()) {
		token, err := utils.Decrypt(account.AccessToken, []byte(s.cfg.SecretKey))
		if err != nil {
			return nil, "", fmt.Errorf("%w: stored token is unreadable", ErrAccountNotConnected)
		}
		return account, token, nil
	}

	if account.RefreshToken == "" {
		return nil, "", fmt.Errorf("%w: %s token expired and cannot be refreshed", ErrTokenExpired, platform)
	}

	token, err := s.Refresh(ctx, account)
	if err != nil {
		return nil, "", err
	}
	return account, token, nil
}

// Refresh renews the account's access token, persists the encrypted result
// and returns the new plaintext token. Every failure is reported as
// ErrAccountNotConnected since the user must reconnect to recover.
func (s *credentialService) Refresh(ctx context.Context, account *models.SocialAccount) (string, error) {
	refresher, ok := s.refreshers[account.Platform]
	if !ok {
		return "", fmt.Errorf("%w: %s does not support token refresh", ErrAccountNotConnected, account.Platform)
	}

	refreshToken, err := utils.Decrypt(account.RefreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("%w: stored refresh token is unreadable", ErrAccountNotConnected)
	}

	token, err := refresher.Refresh(ctx, refreshToken)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues(account.Platform, "error").Inc()
		slog.Warn("token refresh failed", "platform", account.Platform, "user_id", account.UserID, "error", err)
		return "", fmt.Errorf("%w: token refresh failed: %v", ErrAccountNotConnected, err)
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return "", err
	}
	var encryptedRefreshToken string
	if token.RefreshToken != "" {
		encryptedRefreshToken, err = utils.Encrypt([]byte(token.RefreshToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return "", err
		}
	}

	updated := models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: token.Expiry,
	}
	if err := s.sa.SetToken(ctx, account.ID, account.AccessToken, &updated); err != nil {
		// the fresh token is still usable for this attempt
		slog.Error("failed to persist refreshed token", "platform", account.Platform, "user_id", account.UserID, "error", err)
	} else {
		account.AccessToken = encryptedAccessToken
		if encryptedRefreshToken != "" {
			account.RefreshToken = encryptedRefreshToken
		}
		account.TokenExpiresAt = token.Expiry
	}

	metrics.TokenRefreshes.WithLabelValues(account.Platform, "ok").Inc()
	return token.AccessToken, nil
}

type oauth2Refresher struct {
	cfg *oauth2.Config
}

// NewOAuth2Refresher refreshes tokens through a standard OAuth2 token endpoint.
func NewOAuth2Refresher(clientID, clientSecret string, endpoint oauth2.Endpoint) TokenRefresher {
	return &oauth2Refresher{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoint,
		},
	}
}

func (r *oauth2Refresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, errors.New("refresh token is empty")
	}
	expired := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}
	return r.cfg.TokenSource(ctx, expired).Token()
}

var (
	TwitterEndpoint = oauth2.Endpoint{
		AuthURL:   "https://twitter.com/i/oauth2/authorize",
		TokenURL:  "https://api.x.com/2/oauth2/token",
		AuthStyle: oauth2.AuthStyleInHeader,
	}
	LinkedInEndpoint = oauth2.Endpoint{
		AuthURL:   "https://www.linkedin.com/oauth/v2/authorization",
		TokenURL:  "https://www.linkedin.com/oauth/v2/accessToken",
		AuthStyle: oauth2.AuthStyleInParams,
	}
)

// NewTokenRefreshers wires the refresh flow for every supported platform.
func NewTokenRefreshers(cfg config.Config, instagram TokenRefresher) map[string]TokenRefresher {
	return map[string]TokenRefresher{
		models.PlatformTwitter:   NewOAuth2Refresher(cfg.Twitter.ClientID, cfg.Twitter.ClientSecret, TwitterEndpoint),
		models.PlatformLinkedIn:  NewOAuth2Refresher(cfg.LinkedIn.ClientID, cfg.LinkedIn.ClientSecret, LinkedInEndpoint),
		models.PlatformInstagram: instagram,
	}
}
