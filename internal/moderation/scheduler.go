package moderation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Shivam4552/Telegram-bot-ocean/internal/config"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/db"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/infra"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/observability"
)

const (
	previewSampleSize    = 5
	historyPruneInterval = time.Hour
)

type historyStore interface {
	GetMessagesOlderThan(ctx context.Context, chatID int64, cutoff time.Time) ([]db.TrackedMessage, error)
	PruneMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PreviewResult describes what a deletion at the given threshold would touch,
// without deleting anything.
type PreviewResult struct {
	ThresholdMinutes int
	CandidateCount   int
	OldestSentAt     time.Time
	Sample           []db.TrackedMessage
}

// JobDescriptor is a point-in-time snapshot of one recurring job.
type JobDescriptor struct {
	ThresholdMinutes int
	NextRunAt        time.Time
	MessagesDeleted  int64
}

type recurringJob struct {
	threshold int
	cancel    context.CancelFunc

	mu      sync.Mutex
	nextRun time.Time
	deleted int64
}

// Scheduler owns the retention side: preview, one-shot purges, and the
// registry of recurring purge jobs keyed by threshold. All passes funnel
// through the shared deleter, so the rate limiter budget is global.
type Scheduler struct {
	store    historyStore
	deleter  *Deleter
	notifier Notifier
	clock    Clock
	cfg      config.Retention
	chatID   int64
	logger   *log.Entry

	mu      sync.Mutex
	jobs    map[int]*recurringJob
	runCtx  context.Context
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

func NewScheduler(store historyStore, deleter *Deleter, notifier Notifier, clock Clock, cfg config.Retention, chatID int64) *Scheduler {
	return &Scheduler{
		store:    store,
		deleter:  deleter,
		notifier: notifier,
		clock:    clock,
		cfg:      cfg,
		chatID:   chatID,
		jobs:     map[int]*recurringJob{},
		logger:   log.WithField("context", "scheduler"),
	}
}

// Start launches the background history pruner. Recurring jobs created before
// Start are not supported; create them after the runtime is up.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler already started")
	}
	s.runCtx, s.cancel = context.WithCancel(context.Background())
	s.started = true

	s.wg.Add(1)
	runCtx := s.runCtx
	go func() {
		defer s.wg.Done()
		infra.GoRecoverable(-1, "history_pruner", func() { s.pruneLoop(runCtx) })
	}()
	return nil
}

// Stop cancels all recurring jobs, the pruner, and any in-flight deletion
// pass, then waits for the workers to drain.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	for threshold, job := range s.jobs {
		job.cancel()
		delete(s.jobs, threshold)
	}
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "scheduler stop")
	}
}

// CreatePreviewJob reports the candidate set for a purge at threshold minutes
// without deleting anything.
func (s *Scheduler) CreatePreviewJob(ctx context.Context, thresholdMinutes int) (PreviewResult, error) {
	if err := s.validateThreshold(thresholdMinutes, s.cfg.MinThresholdMin); err != nil {
		return PreviewResult{}, err
	}
	candidates, err := s.candidates(ctx, thresholdMinutes)
	if err != nil {
		return PreviewResult{}, errors.Wrap(err, "load preview candidates")
	}
	result := PreviewResult{
		ThresholdMinutes: thresholdMinutes,
		CandidateCount:   len(candidates),
	}
	if len(candidates) > 0 {
		result.OldestSentAt = candidates[0].SentAt
		sample := previewSampleSize
		if sample > len(candidates) {
			sample = len(candidates)
		}
		result.Sample = candidates[:sample]
	}
	return result, nil
}

// CreateDeleteJob runs a one-shot purge for messages older than threshold
// minutes. Thresholds above the confirmation gate require confirmed=true and
// return ErrConfirmationRequired otherwise.
func (s *Scheduler) CreateDeleteJob(ctx context.Context, thresholdMinutes int, confirmed bool) (BatchResult, error) {
	if err := s.validateThreshold(thresholdMinutes, s.cfg.MinThresholdMin); err != nil {
		return BatchResult{}, err
	}
	if thresholdMinutes > s.cfg.ConfirmOverMinutes && !confirmed {
		return BatchResult{}, errors.Wrapf(ErrConfirmationRequired, "threshold %d min exceeds %d min", thresholdMinutes, s.cfg.ConfirmOverMinutes)
	}
	result, err := s.runPass(ctx, thresholdMinutes, "oneshot")
	if err != nil {
		return result, err
	}
	return result, nil
}

// CreateAutoJob registers a recurring purge job for the threshold. Creating a
// job for a threshold that already has one replaces it: the old job stops and
// the deletion counter starts from zero.
func (s *Scheduler) CreateAutoJob(ctx context.Context, thresholdMinutes int) (JobDescriptor, error) {
	if err := s.validateThreshold(thresholdMinutes, s.cfg.MinAutoThreshold); err != nil {
		return JobDescriptor{}, err
	}

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return JobDescriptor{}, errors.New("scheduler not started")
	}
	if existing, ok := s.jobs[thresholdMinutes]; ok {
		existing.cancel()
	}
	jobCtx, jobCancel := context.WithCancel(s.runCtx)
	job := &recurringJob{
		threshold: thresholdMinutes,
		cancel:    jobCancel,
		nextRun:   s.clock.Now().Add(s.cfg.AutoJobInterval),
	}
	s.jobs[thresholdMinutes] = job
	runCtx := s.runCtx
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		infra.GoRecoverable(-1, fmt.Sprintf("auto_job_%dm", thresholdMinutes), func() {
			s.autoJobLoop(runCtx, jobCtx, job)
		})
	}()

	s.logger.WithField("threshold_min", thresholdMinutes).Info("recurring job created")
	return s.describe(job), nil
}

// StopAuto cancels the recurring job for the threshold.
func (s *Scheduler) StopAuto(thresholdMinutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[thresholdMinutes]
	if !ok {
		return errors.Wrapf(ErrJobNotFound, "threshold %d min", thresholdMinutes)
	}
	job.cancel()
	delete(s.jobs, thresholdMinutes)
	s.logger.WithField("threshold_min", thresholdMinutes).Info("recurring job stopped")
	return nil
}

// StopAll cancels every recurring job and returns the thresholds that were
// stopped. Stopping with no jobs registered is not an error.
func (s *Scheduler) StopAll() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	stopped := make([]int, 0, len(s.jobs))
	for threshold, job := range s.jobs {
		job.cancel()
		delete(s.jobs, threshold)
		stopped = append(stopped, threshold)
	}
	sort.Ints(stopped)
	if len(stopped) > 0 {
		s.logger.WithField("thresholds", stopped).Info("all recurring jobs stopped")
	}
	return stopped
}

// ListAuto returns snapshots of the registered recurring jobs ordered by
// threshold.
func (s *Scheduler) ListAuto() []JobDescriptor {
	s.mu.Lock()
	jobs := make([]*recurringJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.Unlock()

	descriptors := make([]JobDescriptor, 0, len(jobs))
	for _, job := range jobs {
		descriptors = append(descriptors, s.describe(job))
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].ThresholdMinutes < descriptors[j].ThresholdMinutes
	})
	return descriptors
}

// autoJobLoop fires a deletion pass every interval. The pass runs on the
// scheduler's runtime context rather than the job's own, so stopping the job
// suppresses future firings without aborting a pass already under way.
func (s *Scheduler) autoJobLoop(runCtx, jobCtx context.Context, job *recurringJob) {
	ticker := s.clock.NewTicker(s.cfg.AutoJobInterval)
	defer ticker.Stop()
	for {
		select {
		case <-jobCtx.Done():
			return
		case <-ticker.Chan():
		}
		result, err := s.runPass(runCtx, job.threshold, "auto")
		if err != nil {
			s.logger.WithError(err).WithField("threshold_min", job.threshold).Error("recurring pass failed")
		}
		job.mu.Lock()
		job.deleted += int64(result.Deleted)
		job.nextRun = s.clock.Now().Add(s.cfg.AutoJobInterval)
		job.mu.Unlock()
	}
}

// runPass computes the candidate set against the current clock and hands it
// to the shared deleter.
func (s *Scheduler) runPass(ctx context.Context, thresholdMinutes int, path string) (BatchResult, error) {
	candidates, err := s.candidates(ctx, thresholdMinutes)
	if err != nil {
		return BatchResult{}, errors.Wrap(err, "load candidates")
	}
	if len(candidates) == 0 {
		return BatchResult{}, nil
	}
	result, err := s.deleter.DeleteBatch(ctx, candidates)
	observability.RecordDeleted(path, result.Deleted)
	if err != nil {
		return result, errors.Wrap(err, "delete batch")
	}
	return result, nil
}

// candidates returns non-admin tracked messages older than the threshold,
// oldest first.
func (s *Scheduler) candidates(ctx context.Context, thresholdMinutes int) ([]db.TrackedMessage, error) {
	cutoff := s.clock.Now().Add(-time.Duration(thresholdMinutes) * time.Minute)
	tracked, err := s.store.GetMessagesOlderThan(ctx, s.chatID, cutoff)
	if err != nil {
		return nil, err
	}
	candidates := tracked[:0]
	for _, msg := range tracked {
		if msg.IsAdmin {
			continue
		}
		candidates = append(candidates, msg)
	}
	return candidates, nil
}

func (s *Scheduler) validateThreshold(thresholdMinutes, min int) error {
	if thresholdMinutes < min || thresholdMinutes > s.cfg.MaxThresholdMin {
		return errors.Wrapf(ErrInvalidThreshold, "%d min outside [%d,%d]", thresholdMinutes, min, s.cfg.MaxThresholdMin)
	}
	return nil
}

func (s *Scheduler) describe(job *recurringJob) JobDescriptor {
	job.mu.Lock()
	defer job.mu.Unlock()
	return JobDescriptor{
		ThresholdMinutes: job.threshold,
		NextRunAt:        job.nextRun,
		MessagesDeleted:  job.deleted,
	}
}

// pruneLoop drops tracked messages past the retention horizon once an hour.
func (s *Scheduler) pruneLoop(ctx context.Context) {
	ticker := s.clock.NewTicker(historyPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
		cutoff := s.clock.Now().Add(-s.cfg.HistoryMaxAge)
		pruned, err := s.store.PruneMessagesBefore(ctx, cutoff)
		if err != nil {
			s.logger.WithError(err).Error("prune message history")
			continue
		}
		if pruned > 0 {
			s.logger.WithField("pruned", pruned).Debug("message history pruned")
		}
	}
}
