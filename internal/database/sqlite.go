package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"chat-realtime/internal/models"
	"chat-realtime/pkg/logger"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDB is the single-node store used for local development.
type SQLiteDB struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	logger.Info("Opened sqlite database %s", path)
	return newSQLiteDB(db), nil
}

func newSQLiteDB(db *sql.DB) *SQLiteDB {
	return &SQLiteDB{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *SQLiteDB) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func sqlNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(values []string, extra ...interface{}) []interface{} {
	args := make([]interface{}, 0, len(values)+len(extra))
	for _, v := range values {
		args = append(args, v)
	}
	return append(args, extra...)
}

func (s *SQLiteDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx, `SELECT id, username FROM users WHERE id = ?`, id).Scan(&user.ID, &user.Username)
	if err != nil {
		return nil, sqlNotFound(err)
	}
	return user, nil
}

func (s *SQLiteDB) LookupUsernames(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}

	query := `SELECT id, username FROM users WHERE id IN (` + placeholders(len(userIDs)) + `)`
	rows, err := s.db.QueryContext(ctx, query, stringArgs(userIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, username string
		if err := rows.Scan(&id, &username); err != nil {
			return nil, err
		}
		names[id] = username
	}
	return names, rows.Err()
}

func (s *SQLiteDB) GetChannel(ctx context.Context, channelID string) (*models.Channel, error) {
	query := `SELECT id, name, creator_id, active, is_direct_message, created_at FROM channels WHERE id = ?`

	channel := &models.Channel{}
	err := s.db.QueryRowContext(ctx, query, channelID).Scan(
		&channel.ID, &channel.Name, &channel.CreatorID, &channel.Active, &channel.IsDirectMessage, &channel.CreatedAt,
	)
	if err != nil {
		return nil, sqlNotFound(err)
	}

	members, err := s.GetChannelMembership(ctx, channelID)
	if err != nil {
		return nil, err
	}
	channel.Members = members
	return channel, nil
}

func (s *SQLiteDB) GetChannelMembership(ctx context.Context, channelID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM channel_members WHERE channel_id = ? ORDER BY user_id`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		members = append(members, userID)
	}
	return members, rows.Err()
}

func (s *SQLiteDB) IsActive(ctx context.Context, channelID string) (bool, error) {
	var active bool
	err := s.db.QueryRowContext(ctx, `SELECT active FROM channels WHERE id = ?`, channelID).Scan(&active)
	if err != nil {
		return false, sqlNotFound(err)
	}
	return active, nil
}

func (s *SQLiteDB) SaveMessage(ctx context.Context, channelID, senderID, content string) (*models.Message, error) {
	msg := &models.Message{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: s.now(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, channel_id, sender_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ChannelID, msg.SenderID, msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	return msg, nil
}

func (s *SQLiteDB) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	msg := &models.Message{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, channel_id, sender_id, content, created_at FROM messages WHERE id = ?`, messageID,
	).Scan(&msg.ID, &msg.ChannelID, &msg.SenderID, &msg.Content, &msg.CreatedAt)
	if err != nil {
		return nil, sqlNotFound(err)
	}
	return msg, nil
}

func (s *SQLiteDB) SaveReactionSnapshot(ctx context.Context, messageID string, reactions models.ReactionMap) error {
	payload, err := json.Marshal(reactions)
	if err != nil {
		return fmt.Errorf("failed to encode reactions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO message_reactions (message_id, reactions, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (message_id) DO UPDATE SET reactions = excluded.reactions, updated_at = excluded.updated_at`,
		messageID, string(payload), s.now(),
	)
	return err
}

func (s *SQLiteDB) LoadReactionSnapshot(ctx context.Context, messageID string) (models.ReactionMap, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT reactions FROM message_reactions WHERE message_id = ?`, messageID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ReactionMap{}, nil
	}
	if err != nil {
		return nil, err
	}

	reactions := models.ReactionMap{}
	if err := json.Unmarshal([]byte(payload), &reactions); err != nil {
		return nil, fmt.Errorf("failed to decode reactions: %w", err)
	}
	return reactions, nil
}

func (s *SQLiteDB) SaveNotification(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	saved := *n
	if saved.ID == "" {
		saved.ID = uuid.NewString()
	}
	saved.CreatedAt = s.now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_id, type, channel_id, message_id, sender_id, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		saved.ID, saved.RecipientID, string(saved.Type), saved.ChannelID, nullable(saved.MessageID), saved.SenderID, saved.Read, saved.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save notification: %w", err)
	}
	return &saved, nil
}

const notificationColumns = `id, recipient_id, type, channel_id, COALESCE(message_id, ''), sender_id, read, created_at`

func (s *SQLiteDB) GetNotifications(ctx context.Context, ids []string) ([]*models.Notification, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id IN (` + placeholders(len(ids)) + `)`
	return s.queryNotifications(ctx, query, stringArgs(ids)...)
}

func (s *SQLiteDB) MarkNotificationsRead(ctx context.Context, ids []string, recipientID string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE notifications SET read = 1 WHERE id IN (` + placeholders(len(ids)) + `) AND recipient_id = ?`
	_, err := s.db.ExecContext(ctx, query, stringArgs(ids, recipientID)...)
	return err
}

func (s *SQLiteDB) ListUnreadNotifications(ctx context.Context, recipientID string, limit int) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE recipient_id = ? AND read = 0
		ORDER BY created_at DESC
		LIMIT ?`
	return s.queryNotifications(ctx, query, recipientID, limit)
}

func (s *SQLiteDB) queryNotifications(ctx context.Context, query string, args ...interface{}) ([]*models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		var kind string
		if err := rows.Scan(&n.ID, &n.RecipientID, &kind, &n.ChannelID, &n.MessageID, &n.SenderID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Type = models.NotificationType(kind)
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}
