package models

import (
	"database/sql"
	"time"
)

// PostingHistory is one execution attempt for a post.
type PostingHistory struct {
	ID           int64          `db:"id" json:"id"`
	PostID       string         `db:"post_id" json:"post_id"`
	UserID       int64          `db:"user_id" json:"user_id"`
	Platform     string         `db:"platform" json:"platform"`
	MessageID    sql.NullString `db:"message_id" json:"-"`
	Attempt      int            `db:"attempt" json:"attempt"`
	Outcome      string         `db:"outcome" json:"outcome"`
	ErrorMessage sql.NullString `db:"error_message" json:"-"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}
