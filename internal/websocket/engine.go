package websocket

import (
	"context"
	"errors"
	"fmt"

	"chat-realtime/internal/database"
	"chat-realtime/internal/metrics"
	"chat-realtime/internal/models"
	"chat-realtime/pkg/logger"
)

// ChannelDirectory resolves channel records, usually through a cache.
type ChannelDirectory interface {
	GetChannel(ctx context.Context, channelID string) (*models.Channel, error)
}

// Engine ties together the connection registry, the channel subscription
// table and presence so that lifecycle side effects happen in one place.
type Engine struct {
	Registry *Registry
	Channels *Manager
	Presence *PresenceTracker

	directory ChannelDirectory
	users     database.UserRepository
	metrics   *metrics.Metrics
}

func NewEngine(directory ChannelDirectory, users database.UserRepository, m *metrics.Metrics) *Engine {
	registry := NewRegistry()
	channels := NewManager(m)
	return &Engine{
		Registry:  registry,
		Channels:  channels,
		Presence:  NewPresenceTracker(registry, channels, m),
		directory: directory,
		users:     users,
		metrics:   m,
	}
}

func (e *Engine) Register(c *Client) string {
	id := e.Registry.Register(c)
	e.metrics.ConnectionOpened()
	logger.Debug("Connection %s registered", id)
	return id
}

// BindUser attaches the connection to userID's personal stream and marks
// the user online.
func (e *Engine) BindUser(connID, userID string) error {
	if err := e.Registry.BindUser(connID, userID); err != nil {
		return err
	}
	e.Presence.Connected(userID)
	return nil
}

// Unregister tears down a connection: it leaves every joined channel and
// recomputes presence. Unknown ids are a no-op.
func (e *Engine) Unregister(connID string) {
	c, ok := e.Registry.Unregister(connID)
	if !ok {
		return
	}
	e.metrics.ConnectionClosed()

	channels := c.close()
	for _, channelID := range channels {
		e.Channels.Unsubscribe(connID, channelID)
	}
	if userID := c.UserID(); userID != "" {
		e.Presence.Disconnected(userID, channels)
	}
	logger.Debug("Connection %s unregistered, left %d channels", connID, len(channels))
}

// UserOf returns the user bound to connID.
func (e *Engine) UserOf(connID string) (string, error) {
	c, ok := e.Registry.Get(connID)
	if !ok {
		return "", models.ErrNotFound
	}
	userID := c.UserID()
	if userID == "" {
		return "", models.ErrUnauthenticated
	}
	return userID, nil
}

// Join subscribes the connection to channelID after checking durable
// membership, then sends the participant snapshot to the joiner and the
// joiner's status to the channel.
func (e *Engine) Join(ctx context.Context, connID, channelID string) error {
	c, ok := e.Registry.Get(connID)
	if !ok {
		return models.ErrNotFound
	}
	userID := c.UserID()
	if userID == "" {
		return models.ErrUnauthenticated
	}

	channel, err := e.directory.GetChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if !channel.Active {
		return models.ErrNotFound
	}
	if !channel.HasMember(userID) {
		return models.ErrNotAMember
	}

	if !c.addChannel(channelID) {
		// Disconnected while joining.
		return nil
	}
	e.Channels.Subscribe(c, channelID)
	if c.isClosed() {
		e.Channels.Unsubscribe(connID, channelID)
		return nil
	}

	c.Send(models.Event{
		Type: models.EventChannelParticipants,
		Data: e.participants(ctx, channel),
	})
	e.Channels.Broadcast(channelID, models.Event{
		Type: models.EventStatusUpdated,
		Data: models.StatusUpdate{UserID: userID, Status: e.Presence.Status(userID)},
	}, connID)
	return nil
}

func (e *Engine) participants(ctx context.Context, channel *models.Channel) models.ChannelParticipants {
	names, err := e.users.LookupUsernames(ctx, channel.Members)
	if err != nil {
		logger.Warn("Error looking up usernames for channel %s: %v", channel.ID, err)
		e.metrics.StorageError("lookup_usernames")
		names = map[string]string{}
	}

	out := models.ChannelParticipants{
		ChannelID:    channel.ID,
		Participants: make([]models.Participant, 0, len(channel.Members)),
	}
	for _, id := range channel.Members {
		out.Participants = append(out.Participants, models.Participant{
			ID:       id,
			Username: names[id],
			Status:   e.Presence.Status(id),
		})
	}
	return out
}

// Leave is idempotent.
func (e *Engine) Leave(connID, channelID string) {
	c, ok := e.Registry.Get(connID)
	if !ok {
		return
	}
	if c.removeChannel(channelID) {
		e.Channels.Unsubscribe(connID, channelID)
	}
}

// UpdateStatus applies an explicit status request from a connection.
func (e *Engine) UpdateStatus(connID string, status models.PresenceStatus) error {
	userID, err := e.UserOf(connID)
	if err != nil {
		return err
	}
	return e.Presence.UpdateStatus(userID, status)
}

func (e *Engine) SubscribersOf(channelID string) []string {
	return e.Channels.SubscribersOf(channelID)
}

func (e *Engine) BroadcastToChannel(channelID string, event models.Event) int {
	return e.Channels.Broadcast(channelID, event)
}

func (e *Engine) IsUserSubscribed(channelID, userID string) bool {
	return e.Channels.UserSubscribed(channelID, userID)
}

// SendToUser pushes event to every connection bound to userID.
func (e *Engine) SendToUser(userID string, event models.Event) int {
	delivered := 0
	for _, c := range e.Registry.clientsOf(userID) {
		if c.Send(event) {
			delivered++
		}
	}
	return delivered
}

// SendToConnection pushes event to one connection.
func (e *Engine) SendToConnection(connID string, event models.Event) bool {
	c, ok := e.Registry.Get(connID)
	if !ok {
		return false
	}
	return c.Send(event)
}

// Shutdown unregisters every connection.
func (e *Engine) Shutdown() {
	for _, c := range e.Registry.all() {
		e.Unregister(c.id)
	}
}

// Describe is a short label for logs.
func (e *Engine) Describe() string {
	return fmt.Sprintf("%d connections, %d active channels", e.Registry.Len(), e.Channels.ChannelCount())
}

// IsValidationError reports whether err is returned to the caller only and
// never broadcast.
func IsValidationError(err error) bool {
	return errors.Is(err, models.ErrUnauthenticated) ||
		errors.Is(err, models.ErrNotAMember) ||
		errors.Is(err, models.ErrEmptyMessage) ||
		errors.Is(err, models.ErrMessageTooLong) ||
		errors.Is(err, models.ErrNoActiveConnection) ||
		errors.Is(err, models.ErrInvalidStatus) ||
		errors.Is(err, models.ErrInvalidPayload) ||
		errors.Is(err, models.ErrForbidden)
}
