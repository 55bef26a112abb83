package bot

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"
)

// Handler is one link in the update processing chain. Returning proceed=false
// stops the chain for this update.
type Handler interface {
	Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error)
}
