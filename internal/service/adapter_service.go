package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const adaptTimeout = 45 * time.Second

var platformGuidance = map[string]string{
	models.PlatformTwitter:   "Write a single tweet. Be punchy, use at most two hashtags.",
	models.PlatformLinkedIn:  "Write a professional LinkedIn post with short paragraphs and a clear takeaway.",
	models.PlatformInstagram: "Write an Instagram caption with an engaging first line and relevant hashtags at the end.",
}

type AdapterService interface {
	Adapt(ctx context.Context, content, platform, tone string) (string, error)
	AdaptAll(ctx context.Context, req *transfer.AdaptRequest) (*transfer.AdaptResponse, error)
}

type adapterService struct {
	cfg    config.Config
	client *http.Client
}

func NewAdapterService(cfg config.Config) AdapterService {
	return &adapterService{
		cfg:    cfg,
		client: &http.Client{Timeout: adaptTimeout},
	}
}

func (s *adapterService) AdaptAll(ctx context.Context, req *transfer.AdaptRequest) (*transfer.AdaptResponse, error) {
	if req == nil || strings.TrimSpace(req.Content) == "" {
		return nil, ErrEmptyContent
	}
	platforms := req.Platforms
	if len(platforms) == 0 {
		platforms = models.Platforms()
	}
	for _, p := range platforms {
		if !models.IsValidPlatform(p) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPlatform, p)
		}
	}

	resp := &transfer.AdaptResponse{Adaptations: map[string]string{}}
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, platform := range platforms {
		wg.Add(1)
		go func(platform string) {
			defer wg.Done()
			adapted, err := s.Adapt(ctx, req.Content, platform, req.Tone)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if resp.Errors == nil {
					resp.Errors = map[string]string{}
				}
				resp.Errors[platform] = err.Error()
				return
			}
			resp.Adaptations[platform] = adapted
		}(platform)
	}
	wg.Wait()

	if len(resp.Adaptations) == 0 {
		return resp, ErrAdaptation
	}
	return resp, nil
}

func (s *adapterService) Adapt(ctx context.Context, content, platform, tone string) (string, error) {
	if s.cfg.AI.APIKey == "" {
		return "", fmt.Errorf("%w: AI_API_KEY is not set", ErrConfiguration)
	}
	if tone == "" {
		tone = "professional"
	}
	limit := models.ContentLimit(platform)

	body, err := json.Marshal(transfer.ChatCompletionRequest{
		Model: s.cfg.AI.Model,
		Messages: []transfer.ChatMessage{
			{
				Role: "system",
				Content: fmt.Sprintf("You adapt social media content for %s. %s Use a %s tone. Stay under %d characters. Reply with the post text only.",
					platform, platformGuidance[platform], tone, limit),
			},
			{Role: "user", Content: content},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.AI.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.AI.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("%w: %v", ErrAdaptation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %v", ErrAdaptation, platformError("ai", resp))
	}

	var completion transfer.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAdaptation, err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrAdaptation, completion.Error.Message)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrAdaptation)
	}

	return truncateRunes(strings.TrimSpace(completion.Choices[0].Message.Content), limit), nil
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
