package database

import (
	"context"

	"chat-realtime/internal/models"
)

type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	LookupUsernames(ctx context.Context, userIDs []string) (map[string]string, error)
}

type ChannelRepository interface {
	GetChannel(ctx context.Context, channelID string) (*models.Channel, error)
	GetChannelMembership(ctx context.Context, channelID string) ([]string, error)
	IsActive(ctx context.Context, channelID string) (bool, error)
}

type MessageRepository interface {
	SaveMessage(ctx context.Context, channelID, senderID, content string) (*models.Message, error)
	GetMessage(ctx context.Context, messageID string) (*models.Message, error)
}

// ReactionRepository stores reaction snapshots keyed by the escaped emoji form.
type ReactionRepository interface {
	SaveReactionSnapshot(ctx context.Context, messageID string, reactions models.ReactionMap) error
	LoadReactionSnapshot(ctx context.Context, messageID string) (models.ReactionMap, error)
}

type NotificationRepository interface {
	SaveNotification(ctx context.Context, n *models.Notification) (*models.Notification, error)
	GetNotifications(ctx context.Context, ids []string) ([]*models.Notification, error)
	MarkNotificationsRead(ctx context.Context, ids []string, recipientID string) error
	ListUnreadNotifications(ctx context.Context, recipientID string, limit int) ([]*models.Notification, error)
}

type Database interface {
	UserRepository
	ChannelRepository
	MessageRepository
	ReactionRepository
	NotificationRepository
	Close() error
}

var (
	_ Database = (*PostgresDB)(nil)
	_ Database = (*SQLiteDB)(nil)
	_ Database = (*MemoryDB)(nil)
)
