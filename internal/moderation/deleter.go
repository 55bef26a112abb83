package moderation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Shivam4552/Telegram-bot-ocean/internal/db"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/observability"
)

const progressNotifyEvery = 50

// BatchResult summarizes one deletion pass.
type BatchResult struct {
	Processed    int
	Deleted      int
	SkippedAdmin int
	Failed       int
}

type deleteTransport interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

type historyForgetter interface {
	ForgetMessage(ctx context.Context, chatID int64, messageID int) error
}

// Notifier delivers operational messages to the channel admins.
type Notifier interface {
	NotifyAdmins(ctx context.Context, text string)
}

// Deleter executes deletion batches against the transport under a single
// shared rate limiter: after every batchSize delete attempts, from any
// caller, the next attempt waits out one pause first. Attempt counting
// survives across batches and single-message removals, so every caller
// shares one budget instead of each getting their own.
type Deleter struct {
	transport deleteTransport
	history   historyForgetter
	notifier  Notifier
	clock     Clock
	batchSize int
	pause     time.Duration
	logger    *log.Entry

	mu       sync.Mutex
	attempts int
}

// NewDeleter builds a deleter. history and notifier may be nil.
func NewDeleter(transport deleteTransport, history historyForgetter, notifier Notifier, clock Clock, batchSize int, pause time.Duration) *Deleter {
	return &Deleter{
		transport: transport,
		history:   history,
		notifier:  notifier,
		clock:     clock,
		batchSize: batchSize,
		pause:     pause,
		logger:    log.WithField("context", "deleter"),
	}
}

// DeleteBatch deletes the candidate messages oldest-first. Admin-authored
// messages are skipped, individual delete failures are counted and the pass
// continues. The pass aborts early only when ctx is canceled.
func (d *Deleter) DeleteBatch(ctx context.Context, candidates []db.TrackedMessage) (BatchResult, error) {
	ctx, finish := observability.TimeBatch(ctx)
	defer finish()

	ordered := make([]db.TrackedMessage, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].SentAt.Equal(ordered[j].SentAt) {
			return ordered[i].SentAt.Before(ordered[j].SentAt)
		}
		return ordered[i].MessageID < ordered[j].MessageID
	})

	runID := uuid.NewRandom().String()
	entry := d.logger.WithFields(log.Fields{"run_id": runID, "candidates": len(ordered)})
	entry.Info("deletion batch started")

	var result BatchResult
	for _, msg := range ordered {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Processed++
		if msg.IsAdmin {
			result.SkippedAdmin++
			continue
		}
		if err := d.waitForSlot(ctx); err != nil {
			return result, err
		}
		if err := d.transport.DeleteMessage(ctx, msg.ChatID, msg.MessageID); err != nil {
			result.Failed++
			entry.WithError(err).WithField("message_id", msg.MessageID).Debug("delete failed")
		} else {
			result.Deleted++
			if d.history != nil {
				if err := d.history.ForgetMessage(ctx, msg.ChatID, msg.MessageID); err != nil {
					entry.WithError(err).WithField("message_id", msg.MessageID).Warn("forget deleted message")
				}
			}
		}
		d.countAttempt()
		if d.notifier != nil && result.Processed%progressNotifyEvery == 0 {
			d.notifier.NotifyAdmins(ctx, fmt.Sprintf("Purge %s: %d/%d messages processed", runID[:8], result.Processed, len(ordered)))
		}
	}

	entry.WithFields(log.Fields{
		"deleted":       result.Deleted,
		"skipped_admin": result.SkippedAdmin,
		"failed":        result.Failed,
	}).Info("deletion batch finished")
	return result, nil
}

// DeleteOne removes a single message through the same shared limiter the
// batch passes use, so live enforcement counts against the per-pause budget
// too. The message is forgotten from the history store on success.
func (d *Deleter) DeleteOne(ctx context.Context, chatID int64, messageID int) error {
	if err := d.waitForSlot(ctx); err != nil {
		return err
	}
	err := d.transport.DeleteMessage(ctx, chatID, messageID)
	d.countAttempt()
	if err != nil {
		return err
	}
	if d.history != nil {
		if ferr := d.history.ForgetMessage(ctx, chatID, messageID); ferr != nil {
			d.logger.WithError(ferr).WithField("message_id", messageID).Warn("forget deleted message")
		}
	}
	return nil
}

// waitForSlot pauses when the shared attempt budget is spent. The counter is
// debited under the lock, the sleep happens outside it, so other callers keep
// making progress against the refreshed budget.
func (d *Deleter) waitForSlot(ctx context.Context) error {
	d.mu.Lock()
	if d.attempts < d.batchSize {
		d.mu.Unlock()
		return nil
	}
	d.attempts -= d.batchSize
	d.mu.Unlock()

	observability.RecordRateLimitPause()
	return d.clock.Sleep(ctx, d.pause)
}

func (d *Deleter) countAttempt() {
	d.mu.Lock()
	d.attempts++
	d.mu.Unlock()
}
