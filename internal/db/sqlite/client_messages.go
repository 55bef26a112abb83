package sqlite

import (
	"context"
	"time"

	"github.com/iamwavecut/tool"

	"github.com/Shivam4552/Telegram-bot-ocean/internal/db"
)

func (c *sqliteClient) TrackMessage(ctx context.Context, msg *db.TrackedMessage) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO tracked_messages (chat_id, message_id, user_id, is_admin, text, image_ref, sent_at)
		VALUES (:chat_id, :message_id, :user_id, :is_admin, :text, :image_ref, :sent_at)
		ON CONFLICT(chat_id, message_id) DO NOTHING
	`
	return tool.Err(c.db.NamedExecContext(ctx, query, msg))
}

func (c *sqliteClient) GetMessagesOlderThan(ctx context.Context, chatID int64, cutoff time.Time) ([]db.TrackedMessage, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var messages []db.TrackedMessage
	err := c.db.SelectContext(ctx, &messages, `
		SELECT chat_id, message_id, user_id, is_admin, text, image_ref, sent_at
		FROM tracked_messages
		WHERE chat_id = ? AND sent_at < ?
		ORDER BY sent_at ASC, message_id ASC
	`, chatID, cutoff)
	return messages, err
}

func (c *sqliteClient) ForgetMessage(ctx context.Context, chatID int64, messageID int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `DELETE FROM tracked_messages WHERE chat_id = ? AND message_id = ?`, chatID, messageID)
	return err
}

func (c *sqliteClient) PruneMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	result, err := c.db.ExecContext(ctx, `DELETE FROM tracked_messages WHERE sent_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
