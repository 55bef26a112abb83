package handlers

import (
	"context"
	"fmt"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/Shivam4552/Telegram-bot-ocean/internal/bot"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/db"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/moderation"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/observability"
)

type channelOps interface {
	BanUser(ctx context.Context, chatID, userID int64) error
	SendMessage(ctx context.Context, chatID int64, text string) error
	NotifyAdmins(ctx context.Context, text string)
	IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
	FileURL(ctx context.Context, fileID string) (string, error)
}

type messageTracker interface {
	TrackMessage(ctx context.Context, msg *db.TrackedMessage) error
}

type messageRemover interface {
	DeleteOne(ctx context.Context, chatID int64, messageID int) error
}

// Moderator is the live moderation handler: it tracks every channel message
// for the retention side, classifies it, and enforces the verdict. Edited
// messages are re-classified, so a clean post cannot be edited into spam.
// Enforcement removals go through the shared deletion rate limiter, the same
// one the retention purges debit.
type Moderator struct {
	ops          channelOps
	tracker      messageTracker
	remover      messageRemover
	classifier   *moderation.Classifier
	ledger       *moderation.Ledger
	chatID       int64
	banThreshold int
}

func NewModerator(ops channelOps, tracker messageTracker, remover messageRemover, classifier *moderation.Classifier, ledger *moderation.Ledger, chatID int64, banThreshold int) *Moderator {
	return &Moderator{
		ops:          ops,
		tracker:      tracker,
		remover:      remover,
		classifier:   classifier,
		ledger:       ledger,
		chatID:       chatID,
		banThreshold: banThreshold,
	}
}

func (m *Moderator) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	msg, edited := pickMessage(u)
	if msg == nil || chat == nil || user == nil {
		return true, nil
	}
	if chat.ID != m.chatID || user.IsBot {
		return true, nil
	}
	entry := m.getLogEntry().WithFields(log.Fields{
		"message_id": msg.MessageID,
		"user_id":    user.ID,
	})

	isAdmin, err := m.ops.IsAdmin(ctx, chat.ID, user.ID)
	if err != nil {
		entry.WithError(err).Warn("cant resolve admin status, treating as regular user")
		isAdmin = false
	}

	text := bot.ExtractContentFromMessage(msg)
	imageRef := bot.LargestPhotoID(msg)
	sentAt := time.Unix(int64(msg.Date), 0)

	if !edited {
		tracked := &db.TrackedMessage{
			ChatID:    chat.ID,
			MessageID: msg.MessageID,
			UserID:    user.ID,
			IsAdmin:   isAdmin,
			Text:      text,
			ImageRef:  imageRef,
			SentAt:    sentAt,
		}
		if err := m.tracker.TrackMessage(ctx, tracked); err != nil {
			entry.WithError(err).Warn("cant track message")
		}
	}

	record := m.ledger.Get(ctx, user.ID)
	if record.Banned {
		if err := m.remover.DeleteOne(ctx, chat.ID, msg.MessageID); err != nil {
			entry.WithError(err).Warn("cant delete banned user message")
		}
		return false, nil
	}

	// The analyzer needs a fetchable URL, not a bare file ID. Resolution
	// failure keeps the raw ID; the classifier degrades the image signal.
	imageURL := imageRef
	if imageRef != "" {
		if url, err := m.ops.FileURL(ctx, imageRef); err != nil {
			entry.WithError(err).Warn("cant resolve image url")
		} else {
			imageURL = url
		}
	}

	verdict := m.classifier.Classify(ctx, moderation.Message{
		ID:            msg.MessageID,
		ChatID:        chat.ID,
		AuthorID:      user.ID,
		SentAt:        sentAt,
		Text:          text,
		ImageRef:      imageURL,
		AdminAuthored: isAdmin,
	}, record)
	if verdict.Category == moderation.CategoryClean {
		return true, nil
	}
	entry = entry.WithFields(log.Fields{
		"category": verdict.Category.String(),
		"rule":     verdict.MatchedRule,
		"edited":   edited,
	})

	if err := m.remover.DeleteOne(ctx, chat.ID, msg.MessageID); err != nil {
		entry.WithError(err).Warn("cant delete violating message")
	} else {
		observability.RecordDeleted("live", 1)
	}

	action := m.ledger.RecordViolation(ctx, user.ID, chat.ID, verdict)
	observability.RecordEnforcement(action.String())

	switch action {
	case moderation.ActionWarn:
		updated := m.ledger.Get(ctx, user.ID)
		warning := fmt.Sprintf("@%s your message was removed (%s). Warning %d of %d.",
			bot.GetUN(user), verdict.Category, updated.WarningCount, m.banThreshold)
		if err := m.ops.SendMessage(ctx, chat.ID, warning); err != nil {
			entry.WithError(err).Warn("cant send warning")
		}
	case moderation.ActionBan:
		if err := m.ops.BanUser(ctx, chat.ID, user.ID); err != nil {
			entry.WithError(err).Error("cant ban user")
		}
		m.ops.NotifyAdmins(ctx, fmt.Sprintf("Banned @%s (id %d) after %d warnings, last violation: %s",
			bot.GetUN(user), user.ID, m.banThreshold, verdict.Category))
	}
	entry.Info("message moderated")
	return false, nil
}

func pickMessage(u *api.Update) (msg *api.Message, edited bool) {
	switch {
	case u.Message != nil:
		return u.Message, false
	case u.ChannelPost != nil:
		return u.ChannelPost, false
	case u.EditedMessage != nil:
		return u.EditedMessage, true
	case u.EditedChannelPost != nil:
		return u.EditedChannelPost, true
	}
	return nil, false
}

func (m *Moderator) getLogEntry() *log.Entry {
	return log.WithField("context", "moderator")
}
