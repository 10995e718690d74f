package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const twitterAPIURL = "https://api.x.com"

type twitterService struct {
	client  *http.Client
	baseURL string
}

func NewTwitterService() Publisher {
	return &twitterService{
		client:  newPlatformHTTPClient(),
		baseURL: twitterAPIURL,
	}
}

func (s *twitterService) Publish(ctx context.Context, account *models.SocialAccount, accessToken string, req PublishRequest) (*transfer.PublishResult, error) {
	body, err := json.Marshal(transfer.TweetRequest{Text: req.Content})
	if err != nil {
		return nil, fmt.Errorf("error marshalling tweet: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("twitter: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, platformError("twitter", resp)
	}

	var tweet transfer.TweetResponse
	if err := json.NewDecoder(resp.Body).Decode(&tweet); err != nil {
		return nil, fmt.Errorf("twitter: error parsing response: %w", err)
	}
	if tweet.Data.ID == "" {
		return nil, fmt.Errorf("twitter: no tweet id returned")
	}

	handle := account.AccountUsername
	if handle == "" {
		handle = "i/web"
	}
	return &transfer.PublishResult{
		ID:  tweet.Data.ID,
		URL: fmt.Sprintf("https://x.com/%s/status/%s", handle, tweet.Data.ID),
	}, nil
}
