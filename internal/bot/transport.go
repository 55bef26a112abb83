package bot

import (
	"context"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const adminCacheTTL = 10 * time.Minute

// ChannelTransport wraps the bot API with the channel-level operations the
// moderation and retention sides need. Admin status is cached per user to
// keep GetChatMember chatter off the hot path.
type ChannelTransport struct {
	bot      *api.BotAPI
	adminIDs []int64
	logger   *log.Entry

	mu         sync.Mutex
	adminCache map[int64]adminCacheEntry
}

type adminCacheEntry struct {
	isAdmin   bool
	expiresAt time.Time
}

func NewChannelTransport(bot *api.BotAPI, adminIDs []int64) *ChannelTransport {
	return &ChannelTransport{
		bot:        bot,
		adminIDs:   adminIDs,
		adminCache: map[int64]adminCacheEntry{},
		logger:     log.WithField("context", "transport"),
	}
}

func (t *ChannelTransport) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if _, err := t.bot.Request(api.NewDeleteMessage(chatID, messageID)); err != nil {
		return errors.WithMessage(err, "cant delete message")
	}
	return nil
}

func (t *ChannelTransport) BanUser(ctx context.Context, chatID, userID int64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if _, err := t.bot.Request(api.BanChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
			UserID: userID,
		},
		RevokeMessages: true,
	}); err != nil {
		return errors.WithMessage(err, "cant ban user")
	}
	return nil
}

func (t *ChannelTransport) SendMessage(ctx context.Context, chatID int64, text string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	msg := api.NewMessage(chatID, text)
	msg.DisableNotification = true
	if _, err := t.bot.Send(msg); err != nil {
		return errors.WithMessage(err, "cant send message")
	}
	return nil
}

// NotifyAdmins direct-messages every configured admin. Delivery is best
// effort; admins who never started a private chat with the bot are skipped.
func (t *ChannelTransport) NotifyAdmins(ctx context.Context, text string) {
	for _, adminID := range t.adminIDs {
		if err := t.SendMessage(ctx, adminID, text); err != nil {
			t.logger.WithError(err).WithField("admin_id", adminID).Debug("cant notify admin")
		}
	}
}

// FileURL resolves a file ID into a directly fetchable URL for the image
// analyzer.
func (t *ChannelTransport) FileURL(ctx context.Context, fileID string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	url, err := t.bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", errors.WithMessage(err, "cant resolve file url")
	}
	return url, nil
}

// IsAdmin reports whether the user is a channel admin, either by static
// configuration or by their live chat member status.
func (t *ChannelTransport) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	for _, adminID := range t.adminIDs {
		if adminID == userID {
			return true, nil
		}
	}

	t.mu.Lock()
	cached, ok := t.adminCache[userID]
	t.mu.Unlock()
	if ok && time.Now().Before(cached.expiresAt) {
		return cached.isAdmin, nil
	}

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}
	chatMember, err := t.bot.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			UserID: userID,
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
		},
	})
	if err != nil {
		return false, errors.WithMessage(err, "cant get chat member")
	}
	isAdmin := chatMember.IsCreator() || chatMember.IsAdministrator()

	t.mu.Lock()
	t.adminCache[userID] = adminCacheEntry{isAdmin: isAdmin, expiresAt: time.Now().Add(adminCacheTTL)}
	t.mu.Unlock()
	return isAdmin, nil
}
