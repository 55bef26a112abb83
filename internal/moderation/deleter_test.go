package moderation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/Shivam4552/Telegram-bot-ocean/internal/db"
)

type fakeTransport struct {
	mu      sync.Mutex
	deleted []int
	failIDs map[int]bool
}

func (f *fakeTransport) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[messageID] {
		return errors.New("message already gone")
	}
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeTransport) DeletedIDs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.deleted...)
}

func makeCandidates(base time.Time, n int) []db.TrackedMessage {
	msgs := make([]db.TrackedMessage, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, db.TrackedMessage{
			ChatID:    100,
			MessageID: i + 1,
			UserID:    int64(1000 + i),
			Text:      "hello",
			SentAt:    base.Add(time.Duration(i) * time.Minute),
		})
	}
	return msgs
}

func TestDeleteBatchRateLimitPauses(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, tc := range []struct {
		name       string
		candidates int
		wantPauses int
	}{
		{"exactly one batch", 20, 0},
		{"one over", 21, 1},
		{"two and a half batches", 50, 2},
		{"empty", 0, 0},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			clock := newFakeClock(base)
			transport := &fakeTransport{}
			deleter := NewDeleter(transport, nil, nil, clock, 20, time.Second)

			result, err := deleter.DeleteBatch(context.Background(), makeCandidates(base, tc.candidates))
			if err != nil {
				t.Fatalf("DeleteBatch: %v", err)
			}
			if result.Deleted != tc.candidates {
				t.Fatalf("deleted = %d, want %d", result.Deleted, tc.candidates)
			}
			if got := clock.SleepCount(); got != tc.wantPauses {
				t.Fatalf("pauses = %d, want %d", got, tc.wantPauses)
			}
		})
	}
}

func TestDeleteBatchSharedCounterAcrossBatches(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	transport := &fakeTransport{}
	deleter := NewDeleter(transport, nil, nil, clock, 20, time.Second)

	// 10 then 15 attempts: the 21st attempt overall lands inside the second
	// batch and takes the single pause.
	if _, err := deleter.DeleteBatch(context.Background(), makeCandidates(base, 10)); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if got := clock.SleepCount(); got != 0 {
		t.Fatalf("pauses after first batch = %d, want 0", got)
	}
	if _, err := deleter.DeleteBatch(context.Background(), makeCandidates(base, 15)); err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if got := clock.SleepCount(); got != 1 {
		t.Fatalf("pauses after second batch = %d, want 1", got)
	}
}

func TestDeleteOneSharesCounterWithBatches(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	transport := &fakeTransport{}
	deleter := NewDeleter(transport, nil, nil, clock, 20, time.Second)
	ctx := context.Background()

	// 15 single removals spend most of the budget; a 10-message batch then
	// crosses it and pauses once.
	for i := 0; i < 15; i++ {
		if err := deleter.DeleteOne(ctx, 100, 500+i); err != nil {
			t.Fatalf("DeleteOne: %v", err)
		}
	}
	if got := clock.SleepCount(); got != 0 {
		t.Fatalf("pauses after singles = %d, want 0", got)
	}
	if _, err := deleter.DeleteBatch(ctx, makeCandidates(base, 10)); err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}
	if got := clock.SleepCount(); got != 1 {
		t.Fatalf("pauses after batch = %d, want 1", got)
	}
	// The 5 attempts left over from the batch carry into subsequent singles,
	// so the next pause lands on the 16th of these.
	for i := 0; i < 20; i++ {
		if err := deleter.DeleteOne(ctx, 100, 600+i); err != nil {
			t.Fatalf("DeleteOne: %v", err)
		}
	}
	if got := clock.SleepCount(); got != 2 {
		t.Fatalf("pauses after second round of singles = %d, want 2", got)
	}
}

func TestDeleteBatchSkipsAdminMessages(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	transport := &fakeTransport{}
	deleter := NewDeleter(transport, nil, nil, clock, 20, time.Second)

	candidates := makeCandidates(base, 25)
	for i := 0; i < 5; i++ {
		candidates[i*5].IsAdmin = true
	}

	result, err := deleter.DeleteBatch(context.Background(), candidates)
	if err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}
	if result.SkippedAdmin != 5 {
		t.Fatalf("skipped = %d, want 5", result.SkippedAdmin)
	}
	if result.Deleted != 20 {
		t.Fatalf("deleted = %d, want 20", result.Deleted)
	}
	// Skipped messages never hit the limiter: 20 attempts, no pause.
	if got := clock.SleepCount(); got != 0 {
		t.Fatalf("pauses = %d, want 0", got)
	}
}

func TestDeleteBatchToleratesFailures(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	transport := &fakeTransport{failIDs: map[int]bool{3: true, 7: true}}
	deleter := NewDeleter(transport, nil, nil, clock, 20, time.Second)

	result, err := deleter.DeleteBatch(context.Background(), makeCandidates(base, 10))
	if err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}
	if result.Failed != 2 {
		t.Fatalf("failed = %d, want 2", result.Failed)
	}
	if result.Deleted != 8 {
		t.Fatalf("deleted = %d, want 8", result.Deleted)
	}
	if result.Processed != 10 {
		t.Fatalf("processed = %d, want 10", result.Processed)
	}
}

func TestDeleteBatchOldestFirst(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	transport := &fakeTransport{}
	deleter := NewDeleter(transport, nil, nil, clock, 20, time.Second)

	// Hand over candidates newest first; the deleter reorders.
	candidates := makeCandidates(base, 5)
	for i, j := 0, len(candidates)-1; i < j; i, j = i+1, j-1 {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}

	if _, err := deleter.DeleteBatch(context.Background(), candidates); err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}
	for i, id := range transport.DeletedIDs() {
		if id != i+1 {
			t.Fatalf("deletion order %v, want ascending by age", transport.DeletedIDs())
		}
	}
}

func TestDeleteBatchCanceledContext(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	transport := &fakeTransport{}
	deleter := NewDeleter(transport, nil, nil, clock, 20, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := deleter.DeleteBatch(ctx, makeCandidates(base, 5)); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if len(transport.DeletedIDs()) != 0 {
		t.Fatal("deleted messages despite canceled context")
	}
}
