package moderation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/Shivam4552/Telegram-bot-ocean/internal/config"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/db"
)

type fakeHistoryStore struct {
	mu       sync.Mutex
	messages []db.TrackedMessage
	pruned   []time.Time
}

func (f *fakeHistoryStore) GetMessagesOlderThan(_ context.Context, chatID int64, cutoff time.Time) ([]db.TrackedMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.TrackedMessage
	for _, msg := range f.messages {
		if msg.ChatID == chatID && !msg.SentAt.After(cutoff) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (f *fakeHistoryStore) PruneMessagesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruned = append(f.pruned, cutoff)
	return 0, nil
}

func (f *fakeHistoryStore) PruneCutoffs() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.pruned...)
}

func testRetentionConfig() config.Retention {
	return config.Retention{
		RateLimitBatchSize: 20,
		RateLimitPause:     time.Second,
		AutoJobInterval:    10 * time.Minute,
		ConfirmOverMinutes: 180,
		MinThresholdMin:    5,
		MinAutoThreshold:   10,
		MaxThresholdMin:    1440,
		HistoryMaxAge:      48 * time.Hour,
	}
}

// newTestScheduler seeds tracked messages at the given ages in minutes.
// Negative ages mark admin-authored messages at the absolute age.
func newTestScheduler(t *testing.T, agesMin []int, adminAgesMin []int) (*Scheduler, *fakeHistoryStore, *fakeTransport, *fakeClock) {
	t.Helper()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	store := &fakeHistoryStore{}
	for i, age := range agesMin {
		store.messages = append(store.messages, db.TrackedMessage{
			ChatID:    100,
			MessageID: i + 1,
			UserID:    int64(1000 + i),
			SentAt:    base.Add(-time.Duration(age) * time.Minute),
		})
	}
	for i, age := range adminAgesMin {
		store.messages = append(store.messages, db.TrackedMessage{
			ChatID:    100,
			MessageID: 500 + i,
			UserID:    int64(1),
			IsAdmin:   true,
			SentAt:    base.Add(-time.Duration(age) * time.Minute),
		})
	}
	transport := &fakeTransport{}
	deleter := NewDeleter(transport, nil, nil, clock, 20, time.Second)
	scheduler := NewScheduler(store, deleter, nil, clock, testRetentionConfig(), 100)
	return scheduler, store, transport, clock
}

func startScheduler(t *testing.T, s *Scheduler) {
	t.Helper()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start scheduler: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
}

func TestCreatePreviewJob(t *testing.T) {
	t.Parallel()
	scheduler, _, transport, _ := newTestScheduler(t, []int{120, 90, 70, 30, 10}, []int{100})

	result, err := scheduler.CreatePreviewJob(context.Background(), 60)
	if err != nil {
		t.Fatalf("CreatePreviewJob: %v", err)
	}
	if result.CandidateCount != 3 {
		t.Fatalf("candidate count = %d, want 3", result.CandidateCount)
	}
	if len(result.Sample) != 3 {
		t.Fatalf("sample size = %d, want 3", len(result.Sample))
	}
	if len(transport.DeletedIDs()) != 0 {
		t.Fatal("preview deleted messages")
	}
}

func TestThresholdValidation(t *testing.T) {
	t.Parallel()
	scheduler, _, _, _ := newTestScheduler(t, []int{120}, nil)
	ctx := context.Background()

	for _, threshold := range []int{4, 0, -1, 1441} {
		if _, err := scheduler.CreatePreviewJob(ctx, threshold); !errors.Is(err, ErrInvalidThreshold) {
			t.Fatalf("preview threshold %d: got %v, want ErrInvalidThreshold", threshold, err)
		}
		if _, err := scheduler.CreateDeleteJob(ctx, threshold, true); !errors.Is(err, ErrInvalidThreshold) {
			t.Fatalf("delete threshold %d: got %v, want ErrInvalidThreshold", threshold, err)
		}
	}

	// Recurring jobs have a higher floor.
	startScheduler(t, scheduler)
	if _, err := scheduler.CreateAutoJob(ctx, 9); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("auto threshold 9: got %v, want ErrInvalidThreshold", err)
	}
	if _, err := scheduler.CreateAutoJob(ctx, 10); err != nil {
		t.Fatalf("auto threshold 10: %v", err)
	}
}

func TestCreateDeleteJob(t *testing.T) {
	t.Parallel()
	scheduler, _, transport, _ := newTestScheduler(t, []int{120, 90, 70, 30, 10}, []int{100})

	result, err := scheduler.CreateDeleteJob(context.Background(), 60, false)
	if err != nil {
		t.Fatalf("CreateDeleteJob: %v", err)
	}
	if result.Deleted != 3 {
		t.Fatalf("deleted = %d, want 3", result.Deleted)
	}
	// The admin message aged 100 minutes is not in the candidate set at all.
	for _, id := range transport.DeletedIDs() {
		if id >= 500 {
			t.Fatalf("admin message %d deleted", id)
		}
	}
}

func TestConfirmationGate(t *testing.T) {
	t.Parallel()
	scheduler, _, transport, _ := newTestScheduler(t, []int{600, 500, 400}, nil)
	ctx := context.Background()

	if _, err := scheduler.CreateDeleteJob(ctx, 300, false); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("unconfirmed: got %v, want ErrConfirmationRequired", err)
	}
	if len(transport.DeletedIDs()) != 0 {
		t.Fatal("unconfirmed job deleted messages")
	}

	// The gate is strictly greater-than.
	if _, err := scheduler.CreateDeleteJob(ctx, 180, false); err != nil {
		t.Fatalf("threshold at gate: %v", err)
	}

	result, err := scheduler.CreateDeleteJob(ctx, 300, true)
	if err != nil {
		t.Fatalf("confirmed: %v", err)
	}
	if result.Deleted != 3 {
		t.Fatalf("confirmed deleted = %d, want 3", result.Deleted)
	}
}

func TestAutoJobLifecycle(t *testing.T) {
	t.Parallel()
	scheduler, _, transport, clock := newTestScheduler(t, []int{120, 90, 70}, nil)
	startScheduler(t, scheduler)
	ctx := context.Background()

	if _, err := scheduler.CreateAutoJob(ctx, 60); err != nil {
		t.Fatalf("CreateAutoJob: %v", err)
	}
	waitFor(t, func() bool { return clock.TickerCount(10*time.Minute) >= 1 })

	if !clock.FireTicker(10 * time.Minute) {
		t.Fatal("no recurring ticker to fire")
	}
	waitFor(t, func() bool { return len(transport.DeletedIDs()) == 3 })
	waitFor(t, func() bool {
		jobs := scheduler.ListAuto()
		return len(jobs) == 1 && jobs[0].MessagesDeleted == 3
	})

	if err := scheduler.StopAuto(60); err != nil {
		t.Fatalf("StopAuto: %v", err)
	}
	if jobs := scheduler.ListAuto(); len(jobs) != 0 {
		t.Fatalf("jobs after stop: %v", jobs)
	}
	if err := scheduler.StopAuto(60); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("second StopAuto: got %v, want ErrJobNotFound", err)
	}
}

func TestAutoJobRecreateResetsCounter(t *testing.T) {
	t.Parallel()
	scheduler, _, transport, clock := newTestScheduler(t, []int{120, 90}, nil)
	startScheduler(t, scheduler)
	ctx := context.Background()

	if _, err := scheduler.CreateAutoJob(ctx, 60); err != nil {
		t.Fatalf("CreateAutoJob: %v", err)
	}
	waitFor(t, func() bool { return clock.TickerCount(10*time.Minute) >= 1 })
	clock.FireTicker(10 * time.Minute)
	waitFor(t, func() bool { return len(transport.DeletedIDs()) == 2 })
	waitFor(t, func() bool {
		jobs := scheduler.ListAuto()
		return len(jobs) == 1 && jobs[0].MessagesDeleted == 2
	})

	descriptor, err := scheduler.CreateAutoJob(ctx, 60)
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if descriptor.MessagesDeleted != 0 {
		t.Fatalf("counter after recreate = %d, want 0", descriptor.MessagesDeleted)
	}
	if jobs := scheduler.ListAuto(); len(jobs) != 1 {
		t.Fatalf("job count after recreate = %d, want 1", len(jobs))
	}
}

func TestStopAll(t *testing.T) {
	t.Parallel()
	scheduler, _, _, _ := newTestScheduler(t, nil, nil)
	startScheduler(t, scheduler)
	ctx := context.Background()

	for _, threshold := range []int{30, 10, 60} {
		if _, err := scheduler.CreateAutoJob(ctx, threshold); err != nil {
			t.Fatalf("CreateAutoJob(%d): %v", threshold, err)
		}
	}

	jobs := scheduler.ListAuto()
	if len(jobs) != 3 {
		t.Fatalf("job count = %d, want 3", len(jobs))
	}
	for i, want := range []int{10, 30, 60} {
		if jobs[i].ThresholdMinutes != want {
			t.Fatalf("jobs[%d].ThresholdMinutes = %d, want %d", i, jobs[i].ThresholdMinutes, want)
		}
	}

	stopped := scheduler.StopAll()
	if len(stopped) != 3 || stopped[0] != 10 || stopped[1] != 30 || stopped[2] != 60 {
		t.Fatalf("stopped = %v, want [10 30 60]", stopped)
	}
	if jobs := scheduler.ListAuto(); len(jobs) != 0 {
		t.Fatalf("jobs after StopAll: %v", jobs)
	}
	if stopped := scheduler.StopAll(); len(stopped) != 0 {
		t.Fatalf("second StopAll stopped %v", stopped)
	}
}

func TestHistoryPruneUsesRetentionHorizon(t *testing.T) {
	t.Parallel()
	scheduler, store, _, clock := newTestScheduler(t, nil, nil)
	startScheduler(t, scheduler)

	waitFor(t, func() bool { return clock.TickerCount(time.Hour) >= 1 })
	clock.FireTicker(time.Hour)
	waitFor(t, func() bool { return len(store.PruneCutoffs()) == 1 })

	want := clock.Now().Add(-48 * time.Hour)
	if got := store.PruneCutoffs()[0]; !got.Equal(want) {
		t.Fatalf("prune cutoff = %v, want %v", got, want)
	}
}
