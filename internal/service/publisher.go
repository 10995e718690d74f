package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const platformRequestTimeout = 30 * time.Second

type PublishRequest struct {
	Content  string
	MediaURL string
}

// Publisher posts content to one platform on behalf of a connected account.
// Errors carry the HTTP status code and reason in their message so that the
// retry classifier can tell rate limits and outages from rejections.
type Publisher interface {
	Publish(ctx context.Context, account *models.SocialAccount, accessToken string, req PublishRequest) (*transfer.PublishResult, error)
}

type Publishers map[string]Publisher

func NewPublishers(twitter, linkedIn, instagram Publisher) Publishers {
	return Publishers{
		models.PlatformTwitter:   twitter,
		models.PlatformLinkedIn:  linkedIn,
		models.PlatformInstagram: instagram,
	}
}

func newPlatformHTTPClient() *http.Client {
	return &http.Client{Timeout: platformRequestTimeout}
}

func platformError(platform string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := extractErrorDetail(body)
	if detail == "" {
		return fmt.Errorf("%s: %d %s", platform, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return fmt.Errorf("%s: %d %s: %s", platform, resp.StatusCode, http.StatusText(resp.StatusCode), detail)
}

func extractErrorDetail(body []byte) string {
	var generic struct {
		Detail  string `json:"detail"`
		Title   string `json:"title"`
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &generic); err != nil {
		return strings.TrimSpace(string(body))
	}
	switch {
	case generic.Detail != "":
		return generic.Detail
	case generic.Error.Message != "":
		return generic.Error.Message
	case generic.Message != "":
		return generic.Message
	default:
		return generic.Title
	}
}
