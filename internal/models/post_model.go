package models

import (
	"database/sql"
	"time"
)

type Post struct {
	ID              string         `db:"id" json:"id"`
	UserID          int64          `db:"user_id" json:"user_id"`
	Platform        string         `db:"platform" json:"platform"`
	OriginalContent string         `db:"original_content" json:"original_content"`
	AdaptedContent  string         `db:"adapted_content" json:"adapted_content"`
	Tone            string         `db:"tone" json:"tone"`
	MediaURL        sql.NullString `db:"media_url" json:"-"`
	ScheduledTime   sql.NullTime   `db:"scheduled_time" json:"-"`
	Status          string         `db:"status" json:"status"` // draft, scheduled, posted, failed
	PostedAt        sql.NullTime   `db:"posted_at" json:"-"`
	ErrorMessage    sql.NullString `db:"error_message" json:"-"`
	JobReference    sql.NullString `db:"qstash_message_id" json:"-"`
	PlatformPostID  sql.NullString `db:"platform_post_id" json:"-"`
	PlatformPostURL sql.NullString `db:"platform_post_url" json:"-"`
	IsDraft         bool           `db:"is_draft" json:"is_draft"`
	ParentPostID    sql.NullString `db:"parent_post_id" json:"-"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPosted    = "posted"
	PostStatusFailed    = "failed"
)

// HasLiveJob reports whether the post holds a delay-queue reference that may still fire.
func (p *Post) HasLiveJob() bool {
	return p.JobReference.Valid && p.JobReference.String != ""
}
