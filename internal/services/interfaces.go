package services

import (
	"context"

	"chat-realtime/internal/models"
)

// Connections resolves a connection id to its bound user.
type Connections interface {
	UserOf(connID string) (string, error)
}

// ChannelBroadcaster delivers an event to the live subscribers of a channel.
type ChannelBroadcaster interface {
	BroadcastToChannel(channelID string, event models.Event) int
}

// SubscriptionChecker reports whether a user has a connection subscribed to a channel.
type SubscriptionChecker interface {
	IsUserSubscribed(channelID, userID string) bool
}

// UserStreams pushes an event to every connection bound to a user.
type UserStreams interface {
	SendToUser(userID string, event models.Event) int
}

// ChannelNotifier fans a published message out to absent members.
type ChannelNotifier interface {
	NotifyChannelEvent(ctx context.Context, channel *models.Channel, msg *models.Message, senderID string) error
}
