package transfer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/postflow/internal/models"
)

const (
	BulkActionDelete     = "delete"
	BulkActionReschedule = "reschedule"
	BulkActionDuplicate  = "duplicate"
	BulkActionCancel     = "cancel"
)

type ScheduleRequest struct {
	Platform        string `json:"platform"`
	Content         string `json:"content"`
	OriginalContent string `json:"originalContent"`
	Tone            string `json:"tone"`
	MediaURL        string `json:"mediaUrl"`
	ScheduledTime   string `json:"scheduledTime"`
	UserID          int64  `json:"userId"`
}

type ScheduleResponse struct {
	Success   bool   `json:"success"`
	PostID    string `json:"postId"`
	MessageID string `json:"messageId"`
}

type DraftRequest struct {
	Platform        string `json:"platform"`
	Content         string `json:"content"`
	OriginalContent string `json:"originalContent"`
	Tone            string `json:"tone"`
	MediaURL        string `json:"mediaUrl"`
}

type ScheduleDraftRequest struct {
	ScheduledTime string `json:"scheduledTime"`
}

type RetryRequest struct {
	PostID string `json:"postId"`
}

type BulkRequest struct {
	Action        string   `json:"action"`
	PostIDs       []string `json:"postIds"`
	UserID        int64    `json:"userId"`
	ScheduledTime string   `json:"scheduledTime,omitempty"`
}

// BulkResult carries aggregate counts; only the count matching the action is set.
type BulkResult struct {
	Success          bool          `json:"success"`
	DeletedCount     *int64        `json:"deletedCount,omitempty"`
	RescheduledCount *int64        `json:"rescheduledCount,omitempty"`
	DuplicatedCount  *int64        `json:"duplicatedCount,omitempty"`
	CancelledCount   *int64        `json:"cancelledCount,omitempty"`
	FailedCount      int64         `json:"failedCount"`
	Failures         []BulkFailure `json:"failures,omitempty"`
	CreatedIDs       []string      `json:"createdIds,omitempty"`
	Message          string        `json:"message"`
}

type BulkFailure struct {
	PostID string `json:"postId"`
	Error  string `json:"error"`
}

type BatchPost struct {
	Platform      string `json:"platform"`
	Content       string `json:"content"`
	ScheduledTime string `json:"scheduledTime"`
	Topic         string `json:"topic,omitempty"`
	MediaURL      string `json:"mediaUrl,omitempty"`
}

type BatchScheduleRequest struct {
	Posts  []BatchPost `json:"posts"`
	UserID int64       `json:"userId"`
}

type BatchItemResult struct {
	Index     int    `json:"index"`
	Success   bool   `json:"success"`
	PostID    string `json:"postId,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

type BatchScheduleResponse struct {
	Success   bool              `json:"success"`
	Total     int               `json:"total"`
	Scheduled int               `json:"scheduled"`
	Failed    int               `json:"failed"`
	Results   []BatchItemResult `json:"results"`
}

type AdaptRequest struct {
	Content   string   `json:"content"`
	Platforms []string `json:"platforms"`
	Tone      string   `json:"tone"`
}

type AdaptResponse struct {
	Adaptations map[string]string `json:"adaptations"`
	Errors      map[string]string `json:"errors,omitempty"`
}

// ExecutePayload is the body the delay queue delivers to the executor callback.
// It captures the adapted content at schedule time.
type ExecutePayload struct {
	PostID   string `json:"postId"`
	Platform string `json:"platform"`
	Content  string `json:"content"`
	UserID   int64  `json:"userId"`
	MediaURL string `json:"mediaUrl,omitempty"`
}

func (p *ExecutePayload) Validate() error {
	if _, err := uuid.Parse(p.PostID); err != nil {
		return fmt.Errorf("invalid postId %q", p.PostID)
	}
	if !models.IsValidPlatform(p.Platform) {
		return fmt.Errorf("invalid platform %q", p.Platform)
	}
	if strings.TrimSpace(p.Content) == "" {
		return errors.New("content is empty")
	}
	if p.UserID <= 0 {
		return errors.New("invalid userId")
	}
	return nil
}

type ExecuteResponse struct {
	Success bool   `json:"success"`
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
}

type PostView struct {
	ID              string     `json:"id"`
	UserID          int64      `json:"userId"`
	Platform        string     `json:"platform"`
	OriginalContent string     `json:"originalContent"`
	AdaptedContent  string     `json:"adaptedContent"`
	Tone            string     `json:"tone,omitempty"`
	MediaURL        string     `json:"mediaUrl,omitempty"`
	ScheduledTime   *time.Time `json:"scheduledTime"`
	Status          string     `json:"status"`
	PostedAt        *time.Time `json:"postedAt"`
	ErrorMessage    *string    `json:"errorMessage"`
	MessageID       *string    `json:"messageId"`
	PlatformPostID  string     `json:"platformPostId,omitempty"`
	PlatformPostURL string     `json:"platformPostUrl,omitempty"`
	IsDraft         bool       `json:"isDraft"`
	ParentPostID    *string    `json:"parentPostId"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func NewPostView(p *models.Post) PostView {
	v := PostView{
		ID:              p.ID,
		UserID:          p.UserID,
		Platform:        p.Platform,
		OriginalContent: p.OriginalContent,
		AdaptedContent:  p.AdaptedContent,
		Tone:            p.Tone,
		MediaURL:        p.MediaURL.String,
		Status:          p.Status,
		PlatformPostID:  p.PlatformPostID.String,
		PlatformPostURL: p.PlatformPostURL.String,
		IsDraft:         p.IsDraft,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	if p.ScheduledTime.Valid {
		v.ScheduledTime = &p.ScheduledTime.Time
	}
	if p.PostedAt.Valid {
		v.PostedAt = &p.PostedAt.Time
	}
	if p.ErrorMessage.Valid {
		v.ErrorMessage = &p.ErrorMessage.String
	}
	if p.JobReference.Valid {
		v.MessageID = &p.JobReference.String
	}
	if p.ParentPostID.Valid {
		v.ParentPostID = &p.ParentPostID.String
	}
	return v
}

type AttemptView struct {
	Attempt      int       `json:"attempt"`
	Outcome      string    `json:"outcome"`
	MessageID    string    `json:"messageId,omitempty"`
	ErrorMessage *string   `json:"errorMessage"`
	CreatedAt    time.Time `json:"createdAt"`
}

func NewAttemptView(ph *models.PostingHistory) AttemptView {
	v := AttemptView{
		Attempt:   ph.Attempt,
		Outcome:   ph.Outcome,
		MessageID: ph.MessageID.String,
		CreatedAt: ph.CreatedAt,
	}
	if ph.ErrorMessage.Valid {
		v.ErrorMessage = &ph.ErrorMessage.String
	}
	return v
}
