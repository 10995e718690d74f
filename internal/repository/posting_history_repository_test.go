package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostingHistoryRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostingHistoryRepository(db)

	now := time.Now().UTC()
	ph := &models.PostingHistory{
		PostID:       "6f1c1f5e-2b7a-4b55-9c55-0a3d3c1f1c01",
		UserID:       7,
		Platform:     "twitter",
		MessageID:    sql.NullString{String: "msg_abc", Valid: true},
		Attempt:      2,
		Outcome:      "retry",
		ErrorMessage: sql.NullString{String: "twitter: 503 Service Unavailable", Valid: true},
	}
	mock.ExpectQuery(`(?s)INSERT INTO posting_history .+ RETURNING id, created_at`).
		WithArgs(ph.PostID, ph.UserID, ph.Platform, ph.MessageID, ph.Attempt, ph.Outcome, ph.ErrorMessage).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), now))

	id, err := repo.Create(context.Background(), ph)
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.Equal(t, now, ph.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostingHistoryRepository_ListByPostID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostingHistoryRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "post_id", "user_id", "platform", "message_id", "attempt", "outcome", "error_message", "created_at"}).
		AddRow(int64(1), "p1", int64(7), "twitter", "msg_abc", 1, "retry", "twitter: 429 Too Many Requests", now).
		AddRow(int64(2), "p1", int64(7), "twitter", "msg_abc", 2, "posted", nil, now.Add(2*time.Second))
	mock.ExpectQuery(`(?s)SELECT .+ FROM posting_history\s+WHERE post_id = \$1\s+ORDER BY created_at, id`).
		WithArgs("p1").
		WillReturnRows(rows)

	entries, err := repo.ListByPostID(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "retry", entries[0].Outcome)
	assert.True(t, entries[0].ErrorMessage.Valid)
	assert.Equal(t, 2, entries[1].Attempt)
	assert.False(t, entries[1].ErrorMessage.Valid)
	require.NoError(t, mock.ExpectationsWereMet())
}
