package db

import "time"

type (
	// TrackedMessage is a channel message recorded at ingestion time. The
	// is_admin flag is derived once from the author's identity and never
	// changes for the message's lifetime.
	TrackedMessage struct {
		ChatID    int64     `db:"chat_id"`
		MessageID int       `db:"message_id"`
		UserID    int64     `db:"user_id"`
		IsAdmin   bool      `db:"is_admin"`
		Text      string    `db:"text"`
		ImageRef  string    `db:"image_ref"`
		SentAt    time.Time `db:"sent_at"`
	}

	// UserRecord mirrors the in-memory trust ledger entry for persistence.
	UserRecord struct {
		UserID       int64     `db:"user_id"`
		WarningCount int       `db:"warning_count"`
		TrustScore   int       `db:"trust_score"`
		Whitelisted  bool      `db:"whitelisted"`
		Banned       bool      `db:"banned"`
		UpdatedAt    time.Time `db:"updated_at"`
	}

	Violation struct {
		ID            int64     `db:"id"`
		UserID        int64     `db:"user_id"`
		ChatID        int64     `db:"chat_id"`
		Category      string    `db:"category"`
		MatchedRule   string    `db:"matched_rule"`
		WarningNumber int       `db:"warning_number"`
		CreatedAt     time.Time `db:"created_at"`
	}
)
