package moderation

import (
	"context"
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	log "github.com/sirupsen/logrus"

	"github.com/Shivam4552/Telegram-bot-ocean/internal/db"
)

// Action is the enforcement outcome of recording a violation.
type Action int

const (
	ActionNone Action = iota
	ActionWarn
	ActionBan
)

func (a Action) String() string {
	switch a {
	case ActionWarn:
		return "warn"
	case ActionBan:
		return "ban"
	default:
		return "none"
	}
}

// Record is a user's standing in the trust ledger.
type Record struct {
	UserID       int64
	WarningCount int
	TrustScore   int
	Whitelisted  bool
	Banned       bool
}

// Trust penalties per violation category.
var trustPenalties = map[Category]int{
	CategoryScreenshotThreat: 30,
	CategoryVulgar:           25,
	CategoryCompetitor:       15,
	CategorySpam:             10,
}

type ledgerStore interface {
	UpsertUserRecord(ctx context.Context, record *db.UserRecord) error
	GetUserRecord(ctx context.Context, userID int64) (*db.UserRecord, error)
	AddViolation(ctx context.Context, violation *db.Violation) error
}

// Ledger tracks per-user warnings and trust scores. Entries shard across an
// xsync map with a per-entry mutex, so violations for different users never
// contend. Mutations write through to the store best-effort; the in-memory
// record stays authoritative for the session.
type Ledger struct {
	users        *xsync.MapOf[int64, *userEntry]
	banThreshold int
	initialTrust int
	store        ledgerStore
	clock        Clock
	logger       *log.Entry
}

type userEntry struct {
	mu     sync.Mutex
	record Record
}

// NewLedger builds a ledger. store may be nil for a purely in-memory ledger.
func NewLedger(banThreshold, initialTrust int, store ledgerStore, clock Clock) *Ledger {
	return &Ledger{
		users:        xsync.NewMapOf[int64, *userEntry](),
		banThreshold: banThreshold,
		initialTrust: initialTrust,
		store:        store,
		clock:        clock,
		logger:       log.WithField("context", "ledger"),
	}
}

// entry returns the live entry for userID, hydrating it from the store on
// first access and seeding a default record for users never seen before.
func (l *Ledger) entry(ctx context.Context, userID int64) *userEntry {
	if e, ok := l.users.Load(userID); ok {
		return e
	}
	seed := Record{UserID: userID, TrustScore: l.initialTrust}
	if l.store != nil {
		if stored, err := l.store.GetUserRecord(ctx, userID); err != nil {
			l.logger.WithError(err).WithField("user_id", userID).Warn("hydrate user record")
		} else if stored != nil {
			seed = Record{
				UserID:       stored.UserID,
				WarningCount: stored.WarningCount,
				TrustScore:   stored.TrustScore,
				Whitelisted:  stored.Whitelisted,
				Banned:       stored.Banned,
			}
		}
	}
	e, _ := l.users.LoadOrCompute(userID, func() *userEntry {
		return &userEntry{record: seed}
	})
	return e
}

// Get returns a snapshot of the user's record, creating a default one for
// unseen users.
func (l *Ledger) Get(ctx context.Context, userID int64) Record {
	e := l.entry(ctx, userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record
}

// RecordViolation applies a non-clean verdict to the user's record and
// returns the enforcement action. Whitelisted and already-banned users are
// left untouched.
func (l *Ledger) RecordViolation(ctx context.Context, userID, chatID int64, verdict Verdict) Action {
	if verdict.Category == CategoryClean {
		return ActionNone
	}
	e := l.entry(ctx, userID)

	e.mu.Lock()
	if e.record.Whitelisted || e.record.Banned {
		e.mu.Unlock()
		return ActionNone
	}
	e.record.WarningCount++
	e.record.TrustScore = clampTrust(e.record.TrustScore - trustPenalties[verdict.Category])
	action := ActionWarn
	if e.record.WarningCount >= l.banThreshold {
		e.record.Banned = true
		action = ActionBan
	}
	snapshot := e.record
	e.mu.Unlock()

	l.persist(ctx, snapshot)
	if l.store != nil {
		violation := &db.Violation{
			UserID:        userID,
			ChatID:        chatID,
			Category:      verdict.Category.String(),
			MatchedRule:   verdict.MatchedRule,
			WarningNumber: snapshot.WarningCount,
			CreatedAt:     l.clock.Now(),
		}
		if err := l.store.AddViolation(ctx, violation); err != nil {
			l.logger.WithError(err).WithField("user_id", userID).Warn("persist violation")
		}
	}
	l.logger.WithFields(log.Fields{
		"user_id":  userID,
		"category": verdict.Category.String(),
		"warnings": snapshot.WarningCount,
		"trust":    snapshot.TrustScore,
		"action":   action.String(),
	}).Info("violation recorded")
	return action
}

// SetTrust overrides the user's trust score, clamped to [0,100].
func (l *Ledger) SetTrust(ctx context.Context, userID int64, score int) Record {
	return l.update(ctx, userID, func(r *Record) {
		r.TrustScore = clampTrust(score)
	})
}

// Whitelist exempts the user from all moderation and restores full trust.
func (l *Ledger) Whitelist(ctx context.Context, userID int64) Record {
	return l.update(ctx, userID, func(r *Record) {
		r.Whitelisted = true
		r.TrustScore = 100
	})
}

// Unwhitelist removes the exemption; warnings and trust are untouched.
func (l *Ledger) Unwhitelist(ctx context.Context, userID int64) Record {
	return l.update(ctx, userID, func(r *Record) {
		r.Whitelisted = false
	})
}

// ResetWarnings clears the user's warning count and lifts a standing ban.
func (l *Ledger) ResetWarnings(ctx context.Context, userID int64) Record {
	return l.update(ctx, userID, func(r *Record) {
		r.WarningCount = 0
		r.Banned = false
	})
}

func (l *Ledger) update(ctx context.Context, userID int64, mutate func(*Record)) Record {
	e := l.entry(ctx, userID)
	e.mu.Lock()
	mutate(&e.record)
	snapshot := e.record
	e.mu.Unlock()
	l.persist(ctx, snapshot)
	return snapshot
}

// Snapshot returns all in-memory records ordered by user ID.
func (l *Ledger) Snapshot() []Record {
	records := make([]Record, 0, l.users.Size())
	l.users.Range(func(_ int64, e *userEntry) bool {
		e.mu.Lock()
		records = append(records, e.record)
		e.mu.Unlock()
		return true
	})
	sort.Slice(records, func(i, j int) bool { return records[i].UserID < records[j].UserID })
	return records
}

func (l *Ledger) persist(ctx context.Context, record Record) {
	if l.store == nil {
		return
	}
	stored := &db.UserRecord{
		UserID:       record.UserID,
		WarningCount: record.WarningCount,
		TrustScore:   record.TrustScore,
		Whitelisted:  record.Whitelisted,
		Banned:       record.Banned,
		UpdatedAt:    l.clock.Now(),
	}
	if err := l.store.UpsertUserRecord(ctx, stored); err != nil {
		l.logger.WithError(err).WithField("user_id", record.UserID).Warn("persist user record")
	}
}

func clampTrust(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
