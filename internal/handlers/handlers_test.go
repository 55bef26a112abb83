package handlers

import (
	"context"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/Shivam4552/Telegram-bot-ocean/internal/db"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/moderation"
)

const testChatID = int64(100)

type fakeOps struct {
	mu         sync.Mutex
	deleted    []int
	banned     []int64
	sent       []string
	notified   []string
	admins     map[int64]bool
	adminIsErr error
}

func (f *fakeOps) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeOps) BanUser(_ context.Context, _ int64, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.banned = append(f.banned, userID)
	return nil
}

func (f *fakeOps) SendMessage(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeOps) NotifyAdmins(_ context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, text)
}

func (f *fakeOps) FileURL(_ context.Context, fileID string) (string, error) {
	return "https://files.example/" + fileID, nil
}

func (f *fakeOps) IsAdmin(_ context.Context, _ int64, userID int64) (bool, error) {
	if f.adminIsErr != nil {
		return false, f.adminIsErr
	}
	return f.admins[userID], nil
}

func (f *fakeOps) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeOps) Deleted() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.deleted...)
}

func (f *fakeOps) Banned() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.banned...)
}

type fakeTracker struct {
	mu      sync.Mutex
	tracked []db.TrackedMessage
}

func (f *fakeTracker) TrackMessage(_ context.Context, msg *db.TrackedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracked = append(f.tracked, *msg)
	return nil
}

func (f *fakeTracker) Tracked() []db.TrackedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]db.TrackedMessage(nil), f.tracked...)
}

type fakeRetention struct {
	mu       sync.Mutex
	previews []int
	deletes  []int
	confirms []bool
	autos    []int
	stopped  []int
	stopAll  int
	jobs     []moderation.JobDescriptor

	previewResult moderation.PreviewResult
	deleteResult  moderation.BatchResult
	deleteErr     error
	autoErr       error
	stopErr       error
}

func (f *fakeRetention) CreatePreviewJob(_ context.Context, threshold int) (moderation.PreviewResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.previews = append(f.previews, threshold)
	return f.previewResult, nil
}

func (f *fakeRetention) CreateDeleteJob(_ context.Context, threshold int, confirmed bool) (moderation.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, threshold)
	f.confirms = append(f.confirms, confirmed)
	return f.deleteResult, f.deleteErr
}

func (f *fakeRetention) CreateAutoJob(_ context.Context, threshold int) (moderation.JobDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.autoErr != nil {
		return moderation.JobDescriptor{}, f.autoErr
	}
	f.autos = append(f.autos, threshold)
	return moderation.JobDescriptor{ThresholdMinutes: threshold}, nil
}

func (f *fakeRetention) StopAuto(threshold int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stopped = append(f.stopped, threshold)
	return nil
}

func (f *fakeRetention) StopAll() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopAll++
	return []int{10, 60}
}

func (f *fakeRetention) ListAuto() []moderation.JobDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs
}

func (f *fakeRetention) DeleteCalls() (thresholds []int, confirms []bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.deletes...), append([]bool(nil), f.confirms...)
}

type fakeWarningStore struct {
	records    []db.UserRecord
	violations []db.Violation
}

func (f *fakeWarningStore) GetUsersWithWarnings(context.Context) ([]db.UserRecord, error) {
	return f.records, nil
}

func (f *fakeWarningStore) GetViolations(context.Context, int64) ([]db.Violation, error) {
	return f.violations, nil
}

// countingClock counts rate limiter pauses instead of sleeping.
type countingClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps int
}

func (c *countingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *countingClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps++
	c.now = c.now.Add(d)
	return nil
}

func (c *countingClock) NewTicker(time.Duration) moderation.Ticker { return stubTicker{} }

func (c *countingClock) SleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sleeps
}

type stubTicker struct{}

func (stubTicker) Chan() <-chan time.Time { return nil }
func (stubTicker) Stop()                  {}

func messageUpdate(msgID int, userID int64, text string, date int) *api.Update {
	return &api.Update{
		Message: &api.Message{
			MessageID: msgID,
			Date:      date,
			Text:      text,
			Chat:      api.Chat{ID: testChatID},
			From:      &api.User{ID: userID},
		},
	}
}
