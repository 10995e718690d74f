package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
	"golang.org/x/oauth2"
)

const instagramGraphURL = "https://graph.instagram.com"

type InstagramService interface {
	Publisher
	TokenRefresher
}

type instagramService struct {
	client  *http.Client
	baseURL string
}

func NewInstagramService() InstagramService {
	return &instagramService{
		client:  newPlatformHTTPClient(),
		baseURL: instagramGraphURL,
	}
}

// Refresh exchanges a long-lived Instagram token for a new one. Instagram uses
// the access token itself as the refresh credential.
func (ig *instagramService) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	params := url.Values{}
	params.Set("grant_type", "ig_refresh_token")
	params.Set("access_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ig.baseURL+"/refresh_access_token?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := ig.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, platformError("instagram", resp)
	}

	var result transfer.InstagramRefreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	if result.AccessToken == "" {
		return nil, errors.New("instagram: refresh returned no access token")
	}

	return &oauth2.Token{
		AccessToken:  result.AccessToken,
		RefreshToken: result.AccessToken,
		TokenType:    result.TokenType,
		Expiry:       GetExpiresAt(int(result.ExpiresIn)),
	}, nil
}

func (ig *instagramService) Publish(ctx context.Context, account *models.SocialAccount, accessToken string, req PublishRequest) (*transfer.PublishResult, error) {
	if req.MediaURL == "" {
		return nil, errors.New("instagram: an image is required to publish")
	}

	containerID, err := ig.createContainer(ctx, account.AccountID, req.MediaURL, req.Content, accessToken)
	if err != nil {
		return nil, err
	}

	mediaID, err := ig.publishContainer(ctx, account.AccountID, containerID, accessToken)
	if err != nil {
		return nil, err
	}

	result := &transfer.PublishResult{ID: mediaID}
	permalink, err := ig.permalink(ctx, mediaID, accessToken)
	if err != nil {
		// media is already live
		slog.Warn("instagram permalink lookup failed", "media_id", mediaID, "error", err)
	} else {
		result.URL = permalink
	}
	return result, nil
}

func (ig *instagramService) createContainer(ctx context.Context, accountID, imageURL, caption, accessToken string) (string, error) {
	payload := map[string]interface{}{
		"image_url":    imageURL,
		"caption":      caption,
		"access_token": accessToken,
	}

	var result transfer.InstagramContainerResponse
	if err := ig.postJSON(ctx, fmt.Sprintf("%s/v21.0/%s/media", ig.baseURL, accountID), payload, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", errors.New("instagram: no media container id returned")
	}
	return result.ID, nil
}

func (ig *instagramService) publishContainer(ctx context.Context, accountID, containerID, accessToken string) (string, error) {
	payload := map[string]string{
		"creation_id":  containerID,
		"access_token": accessToken,
	}

	var result transfer.InstagramPublishResponse
	if err := ig.postJSON(ctx, fmt.Sprintf("%s/v21.0/%s/media_publish", ig.baseURL, accountID), payload, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", errors.New("instagram: no media id returned")
	}
	return result.ID, nil
}

func (ig *instagramService) permalink(ctx context.Context, mediaID, accessToken string) (string, error) {
	params := url.Values{}
	params.Set("fields", "permalink")
	params.Set("access_token", accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v21.0/%s?%s", ig.baseURL, mediaID, params.Encode()), nil)
	if err != nil {
		return "", err
	}
	resp, err := ig.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", platformError("instagram", resp)
	}

	var result transfer.InstagramPermalinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Permalink, nil
}

func (ig *instagramService) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ig.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("instagram: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return platformError("instagram", resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("instagram: error parsing response: %w", err)
	}
	return nil
}
