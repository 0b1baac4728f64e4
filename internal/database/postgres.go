package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chat-realtime/internal/models"
	"chat-realtime/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

// Migrate creates the tables used by the engine if they do not exist.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}

// User Repository Implementation
func (db *PostgresDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := db.pool.QueryRow(ctx, `SELECT id, username FROM users WHERE id = $1`, id).Scan(&user.ID, &user.Username)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

func (db *PostgresDB) LookupUsernames(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}

	rows, err := db.pool.Query(ctx, `SELECT id, username FROM users WHERE id = ANY($1)`, userIDs)
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

// Channel Repository Implementation
func (db *PostgresDB) GetChannel(ctx context.Context, channelID string) (*models.Channel, error) {
	query := `SELECT id, name, creator_id, active, is_direct_message, created_at FROM channels WHERE id = $1`

	channel := &models.Channel{}
	err := db.pool.QueryRow(ctx, query, channelID).Scan(
		&channel.ID, &channel.Name, &channel.CreatorID, &channel.Active, &channel.IsDirectMessage, &channel.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}

	members, err := db.GetChannelMembership(ctx, channelID)
	if err != nil {
		return nil, err
	}
	channel.Members = members
	return channel, nil
}

func (db *PostgresDB) GetChannelMembership(ctx context.Context, channelID string) ([]string, error) {
	rows, err := db.pool.Query(ctx, `SELECT user_id FROM channel_members WHERE channel_id = $1 ORDER BY user_id`, channelID)
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

func (db *PostgresDB) IsActive(ctx context.Context, channelID string) (bool, error) {
	var active bool
	err := db.pool.QueryRow(ctx, `SELECT active FROM channels WHERE id = $1`, channelID).Scan(&active)
	if err != nil {
		return false, notFound(err)
	}
	return active, nil
}

// Message Repository Implementation
func (db *PostgresDB) SaveMessage(ctx context.Context, channelID, senderID, content string) (*models.Message, error) {
	query := `
		INSERT INTO messages (id, channel_id, sender_id, content, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, channel_id, sender_id, content, created_at`

	msg := &models.Message{}
	err := db.pool.QueryRow(ctx, query, uuid.NewString(), channelID, senderID, content).Scan(
		&msg.ID, &msg.ChannelID, &msg.SenderID, &msg.Content, &msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	return msg, nil
}

func (db *PostgresDB) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	query := `SELECT id, channel_id, sender_id, content, created_at FROM messages WHERE id = $1`

	msg := &models.Message{}
	err := db.pool.QueryRow(ctx, query, messageID).Scan(
		&msg.ID, &msg.ChannelID, &msg.SenderID, &msg.Content, &msg.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return msg, nil
}

// Reaction Repository Implementation
func (db *PostgresDB) SaveReactionSnapshot(ctx context.Context, messageID string, reactions models.ReactionMap) error {
	payload, err := json.Marshal(reactions)
	if err != nil {
		return fmt.Errorf("failed to encode reactions: %w", err)
	}

	query := `
		INSERT INTO message_reactions (message_id, reactions, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (message_id) DO UPDATE SET reactions = EXCLUDED.reactions, updated_at = NOW()`
	_, err = db.pool.Exec(ctx, query, messageID, payload)
	return err
}

func (db *PostgresDB) LoadReactionSnapshot(ctx context.Context, messageID string) (models.ReactionMap, error) {
	var payload []byte
	err := db.pool.QueryRow(ctx, `SELECT reactions FROM message_reactions WHERE message_id = $1`, messageID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ReactionMap{}, nil
	}
	if err != nil {
		return nil, err
	}

	reactions := models.ReactionMap{}
	if err := json.Unmarshal(payload, &reactions); err != nil {
		return nil, fmt.Errorf("failed to decode reactions: %w", err)
	}
	return reactions, nil
}

// Notification Repository Implementation
func (db *PostgresDB) SaveNotification(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	query := `
		INSERT INTO notifications (id, recipient_id, type, channel_id, message_id, sender_id, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at`

	saved := *n
	if saved.ID == "" {
		saved.ID = uuid.NewString()
	}
	err := db.pool.QueryRow(ctx, query,
		saved.ID, saved.RecipientID, string(saved.Type), saved.ChannelID, nullable(saved.MessageID), saved.SenderID, saved.Read,
	).Scan(&saved.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save notification: %w", err)
	}
	return &saved, nil
}

func (db *PostgresDB) GetNotifications(ctx context.Context, ids []string) ([]*models.Notification, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, recipient_id, type, channel_id, COALESCE(message_id, ''), sender_id, read, created_at
		FROM notifications WHERE id = ANY($1)`
	return db.queryNotifications(ctx, query, ids)
}

func (db *PostgresDB) MarkNotificationsRead(ctx context.Context, ids []string, recipientID string) error {
	query := `UPDATE notifications SET read = TRUE WHERE id = ANY($1) AND recipient_id = $2`
	_, err := db.pool.Exec(ctx, query, ids, recipientID)
	return err
}

func (db *PostgresDB) ListUnreadNotifications(ctx context.Context, recipientID string, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, recipient_id, type, channel_id, COALESCE(message_id, ''), sender_id, read, created_at
		FROM notifications
		WHERE recipient_id = $1 AND read = FALSE
		ORDER BY created_at DESC
		LIMIT $2`
	return db.queryNotifications(ctx, query, recipientID, limit)
}

func (db *PostgresDB) queryNotifications(ctx context.Context, query string, args ...interface{}) ([]*models.Notification, error) {
	rows, err := db.pool.Query(ctx, query, args...)
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

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
