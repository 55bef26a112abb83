package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Shivam4552/Telegram-bot-ocean/internal/db"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/infra"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/moderation"
)

var (
	deleteCmdRe  = regexp.MustCompile(`^/(\d+)$`)
	previewCmdRe = regexp.MustCompile(`^/preview(\d+)$`)
	confirmCmdRe = regexp.MustCompile(`^/confirm(\d+)$`)
	autoCmdRe    = regexp.MustCompile(`^/auto(\d+)$`)
)

type retention interface {
	CreatePreviewJob(ctx context.Context, thresholdMinutes int) (moderation.PreviewResult, error)
	CreateDeleteJob(ctx context.Context, thresholdMinutes int, confirmed bool) (moderation.BatchResult, error)
	CreateAutoJob(ctx context.Context, thresholdMinutes int) (moderation.JobDescriptor, error)
	StopAuto(thresholdMinutes int) error
	StopAll() []int
	ListAuto() []moderation.JobDescriptor
}

type warningStore interface {
	GetUsersWithWarnings(ctx context.Context) ([]db.UserRecord, error)
	GetViolations(ctx context.Context, userID int64) ([]db.Violation, error)
}

// Admin is the admin command layer: retention job control and trust ledger
// overrides. Only recognized commands from channel admins are consumed;
// everything else, including command-shaped text from regular users, falls
// through to the moderator so a "/" prefix cannot dodge classification.
type Admin struct {
	ops       channelOps
	retention retention
	ledger    *moderation.Ledger
	store     warningStore
	chatID    int64
}

func NewAdmin(ops channelOps, retention retention, ledger *moderation.Ledger, store warningStore, chatID int64) *Admin {
	return &Admin{
		ops:       ops,
		retention: retention,
		ledger:    ledger,
		store:     store,
		chatID:    chatID,
	}
}

func (a *Admin) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if u.Message == nil || chat == nil || user == nil {
		return true, nil
	}
	if chat.ID != a.chatID || user.IsBot {
		return true, nil
	}
	text := strings.TrimSpace(u.Message.Text)
	if !strings.HasPrefix(text, "/") {
		return true, nil
	}
	fields := strings.Fields(text)
	command := trimBotSuffix(fields[0])
	args := fields[1:]
	entry := a.getLogEntry().WithFields(log.Fields{"command": command, "user_id": user.ID})

	run, ok := a.dispatch(command, args, u.Message)
	if !ok {
		entry.Trace("unknown command")
		return true, nil
	}

	isAdmin, err := a.ops.IsAdmin(ctx, chat.ID, user.ID)
	if err != nil {
		return true, errors.WithMessage(err, "cant resolve admin status")
	}
	if !isAdmin {
		entry.WithError(moderation.ErrPermissionDenied).Debug("command refused")
		return true, nil
	}

	run(ctx)
	return false, nil
}

// dispatch resolves the command into a runnable closure, or reports that the
// text is not a recognized command.
func (a *Admin) dispatch(command string, args []string, msg *api.Message) (func(context.Context), bool) {
	switch {
	case deleteCmdRe.MatchString(command):
		threshold := mustThreshold(deleteCmdRe, command)
		return func(ctx context.Context) { a.runDeleteJob(ctx, threshold, false) }, true
	case previewCmdRe.MatchString(command):
		threshold := mustThreshold(previewCmdRe, command)
		return func(ctx context.Context) { a.runPreview(ctx, threshold) }, true
	case confirmCmdRe.MatchString(command):
		threshold := mustThreshold(confirmCmdRe, command)
		return func(ctx context.Context) { a.runDeleteJob(ctx, threshold, true) }, true
	case autoCmdRe.MatchString(command):
		threshold := mustThreshold(autoCmdRe, command)
		return func(ctx context.Context) { a.runAutoJob(ctx, threshold) }, true
	case command == "/stop_auto":
		return func(ctx context.Context) { a.runStopAuto(ctx, args) }, true
	case command == "/list_auto":
		return func(ctx context.Context) { a.runListAuto(ctx) }, true
	case command == "/trust":
		return func(ctx context.Context) { a.runTrust(ctx, msg, args) }, true
	case command == "/whitelist":
		return func(ctx context.Context) { a.runWhitelist(ctx, msg, args, true) }, true
	case command == "/unwhitelist":
		return func(ctx context.Context) { a.runWhitelist(ctx, msg, args, false) }, true
	case command == "/reset_warnings":
		return func(ctx context.Context) { a.runResetWarnings(ctx, msg, args) }, true
	case command == "/warnings":
		return func(ctx context.Context) { a.runWarnings(ctx, msg, args) }, true
	case command == "/status":
		return func(ctx context.Context) { a.runStatus(ctx) }, true
	}
	return nil, false
}

func (a *Admin) runPreview(ctx context.Context, threshold int) {
	result, err := a.retention.CreatePreviewJob(ctx, threshold)
	if err != nil {
		a.replyJobError(ctx, threshold, err)
		return
	}
	if result.CandidateCount == 0 {
		a.reply(ctx, fmt.Sprintf("Preview %dm: nothing to delete.", threshold))
		return
	}
	a.reply(ctx, fmt.Sprintf("Preview %dm: %d messages would be deleted, oldest from %s. Run /%d to delete.",
		threshold, result.CandidateCount, result.OldestSentAt.Format("Jan 2 15:04"), threshold))
}

// runDeleteJob executes the purge off the update loop: a large batch can sit
// through many rate limiter pauses.
func (a *Admin) runDeleteJob(ctx context.Context, threshold int, confirmed bool) {
	go infra.GoRecoverable(1, fmt.Sprintf("delete_job_%dm", threshold), func() {
		result, err := a.retention.CreateDeleteJob(ctx, threshold, confirmed)
		if err != nil {
			a.replyJobError(ctx, threshold, err)
			return
		}
		a.reply(ctx, fmt.Sprintf("Purge %dm done: %d deleted, %d skipped (admin), %d failed.",
			threshold, result.Deleted, result.SkippedAdmin, result.Failed))
	})
}

func (a *Admin) runAutoJob(ctx context.Context, threshold int) {
	descriptor, err := a.retention.CreateAutoJob(ctx, threshold)
	if err != nil {
		a.replyJobError(ctx, threshold, err)
		return
	}
	a.reply(ctx, fmt.Sprintf("Recurring purge registered for messages older than %dm. Next run %s.",
		descriptor.ThresholdMinutes, descriptor.NextRunAt.Format("15:04:05")))
}

func (a *Admin) runStopAuto(ctx context.Context, args []string) {
	if len(args) == 0 || strings.EqualFold(args[0], "all") {
		stopped := a.retention.StopAll()
		if len(stopped) == 0 {
			a.reply(ctx, "No recurring purges are running.")
			return
		}
		a.reply(ctx, fmt.Sprintf("Stopped recurring purges: %s.", joinThresholds(stopped)))
		return
	}
	threshold, err := strconv.Atoi(args[0])
	if err != nil {
		a.reply(ctx, "Usage: /stop_auto [minutes|all]")
		return
	}
	if err := a.retention.StopAuto(threshold); err != nil {
		if errors.Is(err, moderation.ErrJobNotFound) {
			a.reply(ctx, fmt.Sprintf("No recurring purge for %dm. See /list_auto.", threshold))
			return
		}
		a.replyJobError(ctx, threshold, err)
		return
	}
	a.reply(ctx, fmt.Sprintf("Stopped recurring purge for %dm.", threshold))
}

func (a *Admin) runListAuto(ctx context.Context) {
	jobs := a.retention.ListAuto()
	if len(jobs) == 0 {
		a.reply(ctx, "No recurring purges are running.")
		return
	}
	lines := make([]string, 0, len(jobs)+1)
	lines = append(lines, "Recurring purges:")
	for _, job := range jobs {
		lines = append(lines, fmt.Sprintf("• %dm — next run %s, %d deleted so far",
			job.ThresholdMinutes, job.NextRunAt.Format("15:04:05"), job.MessagesDeleted))
	}
	a.reply(ctx, strings.Join(lines, "\n"))
}

func (a *Admin) runTrust(ctx context.Context, msg *api.Message, args []string) {
	target, rest, ok := targetUser(msg, args)
	if !ok || len(rest) == 0 {
		a.reply(ctx, "Usage: /trust <user_id> <score 0-100>, or reply with /trust <score>.")
		return
	}
	score, err := strconv.Atoi(rest[0])
	if err != nil {
		a.reply(ctx, "Usage: /trust <user_id> <score 0-100>, or reply with /trust <score>.")
		return
	}
	record := a.ledger.SetTrust(ctx, target, score)
	a.reply(ctx, fmt.Sprintf("Trust for %d set to %d.", target, record.TrustScore))
}

func (a *Admin) runWhitelist(ctx context.Context, msg *api.Message, args []string, add bool) {
	target, _, ok := targetUser(msg, args)
	if !ok {
		a.reply(ctx, "Reply to the user's message or pass their numeric ID.")
		return
	}
	if add {
		a.ledger.Whitelist(ctx, target)
		a.reply(ctx, fmt.Sprintf("User %d whitelisted, moderation will skip them.", target))
		return
	}
	a.ledger.Unwhitelist(ctx, target)
	a.reply(ctx, fmt.Sprintf("User %d removed from the whitelist.", target))
}

func (a *Admin) runResetWarnings(ctx context.Context, msg *api.Message, args []string) {
	target, _, ok := targetUser(msg, args)
	if !ok {
		a.reply(ctx, "Reply to the user's message or pass their numeric ID.")
		return
	}
	record := a.ledger.ResetWarnings(ctx, target)
	a.reply(ctx, fmt.Sprintf("Warnings for %d cleared, trust stays at %d.", target, record.TrustScore))
}

func (a *Admin) runWarnings(ctx context.Context, msg *api.Message, args []string) {
	if target, _, ok := targetUser(msg, args); ok {
		violations, err := a.store.GetViolations(ctx, target)
		if err != nil {
			a.getLogEntry().WithError(err).Error("cant load violations")
			a.reply(ctx, "Could not load violations.")
			return
		}
		if len(violations) == 0 {
			a.reply(ctx, fmt.Sprintf("No violations on record for %d.", target))
			return
		}
		lines := []string{fmt.Sprintf("Violations for %d:", target)}
		for _, v := range violations {
			lines = append(lines, fmt.Sprintf("• %s — %s (%q), warning %d",
				v.CreatedAt.Format("Jan 2 15:04"), v.Category, v.MatchedRule, v.WarningNumber))
		}
		a.reply(ctx, strings.Join(lines, "\n"))
		return
	}

	records, err := a.store.GetUsersWithWarnings(ctx)
	if err != nil {
		a.getLogEntry().WithError(err).Error("cant load warned users")
		a.reply(ctx, "Could not load warned users.")
		return
	}
	if len(records) == 0 {
		a.reply(ctx, "No users with warnings.")
		return
	}
	lines := []string{"Users with warnings:"}
	for _, record := range records {
		state := ""
		if record.Banned {
			state = ", banned"
		}
		lines = append(lines, fmt.Sprintf("• %d — %d warnings, trust %d%s",
			record.UserID, record.WarningCount, record.TrustScore, state))
	}
	a.reply(ctx, strings.Join(lines, "\n"))
}

func (a *Admin) runStatus(ctx context.Context) {
	jobs := a.retention.ListAuto()
	records := a.ledger.Snapshot()
	warned, banned := 0, 0
	for _, record := range records {
		if record.Banned {
			banned++
		} else if record.WarningCount > 0 {
			warned++
		}
	}
	a.reply(ctx, fmt.Sprintf("Moderation online. Recurring purges: %d. Users warned: %d, banned: %d.",
		len(jobs), warned, banned))
}

func (a *Admin) replyJobError(ctx context.Context, threshold int, err error) {
	switch {
	case errors.Is(err, moderation.ErrConfirmationRequired):
		a.reply(ctx, fmt.Sprintf("Deleting messages older than %dm is a big purge. Run /confirm%d to proceed.", threshold, threshold))
	case errors.Is(err, moderation.ErrInvalidThreshold):
		a.reply(ctx, fmt.Sprintf("Threshold %dm is out of bounds: %s.", threshold, err))
	default:
		a.getLogEntry().WithError(err).WithField("threshold_min", threshold).Error("retention job failed")
		a.reply(ctx, fmt.Sprintf("Job for %dm failed, check the logs.", threshold))
	}
}

func (a *Admin) reply(ctx context.Context, text string) {
	if err := a.ops.SendMessage(ctx, a.chatID, text); err != nil {
		a.getLogEntry().WithError(err).Warn("cant reply")
	}
}

// targetUser resolves the subject of a ledger command: the replied-to user if
// the command is a reply, otherwise the leading numeric argument. rest holds
// the remaining arguments.
func targetUser(msg *api.Message, args []string) (userID int64, rest []string, ok bool) {
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		return msg.ReplyToMessage.From.ID, args, true
	}
	if len(args) == 0 {
		return 0, nil, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, nil, false
	}
	return id, args[1:], true
}

func mustThreshold(re *regexp.Regexp, command string) int {
	threshold, _ := strconv.Atoi(re.FindStringSubmatch(command)[1])
	return threshold
}

func trimBotSuffix(command string) string {
	if i := strings.IndexByte(command, '@'); i >= 0 {
		return command[:i]
	}
	return command
}

func joinThresholds(thresholds []int) string {
	parts := make([]string, 0, len(thresholds))
	for _, t := range thresholds {
		parts = append(parts, fmt.Sprintf("%dm", t))
	}
	return strings.Join(parts, ", ")
}

func (a *Admin) getLogEntry() *log.Entry {
	return log.WithField("context", "admin")
}
