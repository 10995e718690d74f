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

const (
	linkedInAPIURL  = "https://api.linkedin.com"
	linkedInVersion = "202411"
)

type linkedInService struct {
	client  *http.Client
	baseURL string
}

func NewLinkedInService() Publisher {
	return &linkedInService{
		client:  newPlatformHTTPClient(),
		baseURL: linkedInAPIURL,
	}
}

func (s *linkedInService) Publish(ctx context.Context, account *models.SocialAccount, accessToken string, req PublishRequest) (*transfer.PublishResult, error) {
	payload := transfer.LinkedInPostRequest{
		Author:     "urn:li:person:" + account.AccountID,
		Commentary: req.Content,
		Visibility: "PUBLIC",
		Distribution: transfer.LinkedInDistribution{
			FeedDistribution:               "MAIN_FEED",
			TargetEntities:                 []string{},
			ThirdPartyDistributionChannels: []string{},
		},
		LifecycleState:            "PUBLISHED",
		IsReshareDisabledByAuthor: false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshalling payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rest/posts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("LinkedIn-Version", linkedInVersion)
	httpReq.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("linkedin: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, platformError("linkedin", resp)
	}

	postURN := resp.Header.Get("X-Restli-Id")
	if postURN == "" {
		return nil, fmt.Errorf("linkedin: no post id returned")
	}
	return &transfer.PublishResult{
		ID:  postURN,
		URL: "https://www.linkedin.com/feed/update/" + postURN,
	}, nil
}
