package bot

import (
	"context"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const UpdateTimeout = 5 * time.Minute

// UpdateProcessor runs each update through the handler chain in order.
type UpdateProcessor struct {
	s              Service
	updateHandlers []Handler
}

func NewUpdateProcessor(s Service, handlers ...Handler) *UpdateProcessor {
	return &UpdateProcessor{
		s:              s,
		updateHandlers: handlers,
	}
}

func (up *UpdateProcessor) Process(ctx context.Context, u *api.Update) error {
	if u == nil {
		return errors.New("update is nil")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var updateTime time.Time
	switch {
	case u.Message != nil:
		updateTime = time.Unix(int64(u.Message.Date), 0)
	case u.EditedMessage != nil:
		updateTime = time.Unix(int64(u.EditedMessage.Date), 0)
	case u.ChannelPost != nil:
		updateTime = time.Unix(int64(u.ChannelPost.Date), 0)
	case u.EditedChannelPost != nil:
		updateTime = time.Unix(int64(u.EditedChannelPost.Date), 0)
	default:
		updateTime = time.Now()
	}
	if time.Since(updateTime) > UpdateTimeout {
		log.WithFields(log.Fields{
			"update_time": updateTime,
			"age":         time.Since(updateTime),
		}).Debug("Skipping outdated update")
		return nil
	}

	chat := u.FromChat()
	user := u.SentFrom()

	for _, handler := range up.updateHandlers {
		if handler == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			proceed, err := handler.Handle(ctx, u, chat, user)
			if err != nil {
				return errors.WithMessage(err, "handling error")
			}
			if !proceed {
				log.Trace("not proceeding")
				return nil
			}
		}
	}
	return nil
}

// GetUpdatesChans long-polls the bot API and fans updates out on a channel.
func GetUpdatesChans(ctx context.Context, bot *api.BotAPI, config api.UpdateConfig) (api.UpdatesChannel, chan error) {
	ch := make(chan api.Update, bot.Buffer)
	chErr := make(chan error)

	go func() {
		defer close(ch)
		defer close(chErr)
		for {
			select {
			case <-ctx.Done():
				chErr <- ctx.Err()
				return
			default:
				updates, err := bot.GetUpdates(config)
				if err != nil {
					chErr <- err
					return
				}

				for _, update := range updates {
					if update.UpdateID >= config.Offset {
						config.Offset = update.UpdateID + 1
						select {
						case ch <- update:
						case <-ctx.Done():
							chErr <- ctx.Err()
							return
						}
					}
				}
			}
		}
	}()

	return ch, chErr
}

func GetUN(user *api.User) string {
	if user == nil {
		return ""
	}
	userName := user.UserName
	if len(userName) == 0 {
		userName = user.FirstName + " " + user.LastName
		userName = strings.TrimSpace(userName)
	}
	return userName
}

// ExtractContentFromMessage flattens a message into plain text for the
// classifier, folding the caption in for media messages.
func ExtractContentFromMessage(msg *api.Message) string {
	content := strings.TrimSpace(msg.Text + " " + msg.Caption)
	if msg.ReplyMarkup != nil {
		var buttonTexts []string
		for _, row := range msg.ReplyMarkup.InlineKeyboard {
			for _, button := range row {
				if button.Text != "" {
					buttonTexts = append(buttonTexts, button.Text)
				}
			}
		}
		if len(buttonTexts) > 0 {
			content = strings.TrimSpace(content + " " + strings.Join(buttonTexts, " "))
		}
	}
	return content
}

// LargestPhotoID returns the file ID of the highest-resolution photo size, or
// empty when the message carries no photo.
func LargestPhotoID(msg *api.Message) string {
	if len(msg.Photo) == 0 {
		return ""
	}
	largest := msg.Photo[0]
	for _, size := range msg.Photo[1:] {
		if size.Width*size.Height > largest.Width*largest.Height {
			largest = size
		}
	}
	return largest.FileID
}
