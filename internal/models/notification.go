package models

import "time"

type NotificationType string

const (
	NotificationMention       NotificationType = "mention"
	NotificationMessage       NotificationType = "message"
	NotificationChannelInvite NotificationType = "channel_invite"
)

type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipient_id"`
	Type        NotificationType `json:"type"`
	ChannelID   string           `json:"channel_id"`
	MessageID   string           `json:"message_id,omitempty"`
	SenderID    string           `json:"sender_id"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"created_at"`
}
