package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iamwavecut/tool"

	"github.com/Shivam4552/Telegram-bot-ocean/internal/db"
)

func (c *sqliteClient) UpsertUserRecord(ctx context.Context, record *db.UserRecord) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO user_records (user_id, warning_count, trust_score, whitelisted, banned, updated_at)
		VALUES (:user_id, :warning_count, :trust_score, :whitelisted, :banned, :updated_at)
		ON CONFLICT(user_id) DO UPDATE SET
		warning_count=excluded.warning_count,
		trust_score=excluded.trust_score,
		whitelisted=excluded.whitelisted,
		banned=excluded.banned,
		updated_at=excluded.updated_at
	`
	return tool.Err(c.db.NamedExecContext(ctx, query, record))
}

func (c *sqliteClient) GetUserRecord(ctx context.Context, userID int64) (*db.UserRecord, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	record := &db.UserRecord{}
	err := c.db.GetContext(ctx, record, `SELECT * FROM user_records WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (c *sqliteClient) GetUsersWithWarnings(ctx context.Context) ([]db.UserRecord, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var records []db.UserRecord
	err := c.db.SelectContext(ctx, &records, `SELECT * FROM user_records WHERE warning_count > 0 ORDER BY user_id`)
	return records, err
}

func (c *sqliteClient) AddViolation(ctx context.Context, violation *db.Violation) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO violations (user_id, chat_id, category, matched_rule, warning_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := c.db.ExecContext(ctx, query,
		violation.UserID,
		violation.ChatID,
		violation.Category,
		violation.MatchedRule,
		violation.WarningNumber,
		violation.CreatedAt,
	)
	if err != nil {
		return err
	}
	violation.ID, err = result.LastInsertId()
	return err
}

func (c *sqliteClient) GetViolations(ctx context.Context, userID int64) ([]db.Violation, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var violations []db.Violation
	err := c.db.SelectContext(ctx, &violations, `
		SELECT * FROM violations WHERE user_id = ? ORDER BY created_at ASC
	`, userID)
	return violations, err
}
