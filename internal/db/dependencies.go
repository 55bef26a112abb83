package db

import (
	"context"
	"time"
)

type Client interface {
	Close() error

	// Message history, the source for deletion candidate sets.
	TrackMessage(ctx context.Context, msg *TrackedMessage) error
	GetMessagesOlderThan(ctx context.Context, chatID int64, cutoff time.Time) ([]TrackedMessage, error)
	ForgetMessage(ctx context.Context, chatID int64, messageID int) error
	PruneMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Trust ledger write-through.
	UpsertUserRecord(ctx context.Context, record *UserRecord) error
	GetUserRecord(ctx context.Context, userID int64) (*UserRecord, error)
	GetUsersWithWarnings(ctx context.Context) ([]UserRecord, error)

	AddViolation(ctx context.Context, violation *Violation) error
	GetViolations(ctx context.Context, userID int64) ([]Violation, error)
}
