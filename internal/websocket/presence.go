package websocket

import (
	"sync"

	"chat-realtime/internal/metrics"
	"chat-realtime/internal/models"
	"chat-realtime/pkg/logger"
)

type presenceEvent string

const (
	presenceConnected    presenceEvent = "connected"
	presenceDisconnected presenceEvent = "disconnected"
	presenceSetOnline    presenceEvent = "set_online"
	presenceSetBusy      presenceEvent = "set_busy"
)

// presenceTransitions is the complete state machine. A missing entry means
// the event leaves the status unchanged. Connection count gates the
// connected/disconnected events before the table is consulted, so offline
// always wins over busy.
var presenceTransitions = map[models.PresenceStatus]map[presenceEvent]models.PresenceStatus{
	models.StatusOffline: {
		presenceConnected: models.StatusOnline,
	},
	models.StatusOnline: {
		presenceDisconnected: models.StatusOffline,
		presenceSetBusy:      models.StatusBusy,
	},
	models.StatusBusy: {
		presenceDisconnected: models.StatusOffline,
		presenceSetOnline:    models.StatusOnline,
	},
}

type userPresence struct {
	mu     sync.Mutex
	status models.PresenceStatus
}

// PresenceTracker derives each user's status from the registry's connection
// count plus explicit status updates. Events for one user are applied under
// that user's lock, in arrival order.
type PresenceTracker struct {
	mu       sync.Mutex
	users    map[string]*userPresence
	registry *Registry
	channels *Manager
	metrics  *metrics.Metrics
}

func NewPresenceTracker(registry *Registry, channels *Manager, m *metrics.Metrics) *PresenceTracker {
	return &PresenceTracker{
		users:    make(map[string]*userPresence),
		registry: registry,
		channels: channels,
		metrics:  m,
	}
}

func (p *PresenceTracker) entry(userID string) *userPresence {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[userID]
	if !ok {
		u = &userPresence{status: models.StatusOffline}
		p.users[userID] = u
	}
	return u
}

// Status returns the user's current status; unknown users are offline.
func (p *PresenceTracker) Status(userID string) models.PresenceStatus {
	p.mu.Lock()
	u, ok := p.users[userID]
	p.mu.Unlock()
	if !ok {
		return models.StatusOffline
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status
}

// Connected is called after a connection has been bound to userID.
func (p *PresenceTracker) Connected(userID string) {
	p.apply(userID, presenceConnected, nil)
}

// Disconnected is called after a connection of userID was unregistered.
// channels are the ones the departed connection had joined; they still
// receive the offline broadcast.
func (p *PresenceTracker) Disconnected(userID string, channels []string) {
	p.apply(userID, presenceDisconnected, channels)
}

// UpdateStatus applies an explicit online/busy request.
func (p *PresenceTracker) UpdateStatus(userID string, status models.PresenceStatus) error {
	var ev presenceEvent
	switch status {
	case models.StatusOnline:
		ev = presenceSetOnline
	case models.StatusBusy:
		ev = presenceSetBusy
	default:
		return models.ErrInvalidStatus
	}
	_, err := p.apply(userID, ev, nil)
	return err
}

func (p *PresenceTracker) apply(userID string, ev presenceEvent, extraChannels []string) (bool, error) {
	u := p.entry(userID)
	u.mu.Lock()
	defer u.mu.Unlock()

	live := p.registry.CountOf(userID)
	switch ev {
	case presenceConnected:
		if live == 0 {
			return false, nil
		}
	case presenceDisconnected:
		if live > 0 {
			return false, nil
		}
	case presenceSetOnline, presenceSetBusy:
		if live == 0 {
			return false, models.ErrNoActiveConnection
		}
	}

	next, ok := presenceTransitions[u.status][ev]
	if !ok || next == u.status {
		return false, nil
	}
	prev := u.status
	u.status = next

	if prev == models.StatusOffline {
		p.metrics.UserOnline()
	} else if next == models.StatusOffline {
		p.metrics.UserOffline()
	}
	logger.Debug("Presence of user %s: %s -> %s", userID, prev, next)

	targets := p.registry.ChannelsOfUser(userID)
	for _, id := range extraChannels {
		targets[id] = struct{}{}
	}
	event := models.Event{
		Type: models.EventStatusUpdated,
		Data: models.StatusUpdate{UserID: userID, Status: next},
	}
	// Broadcast only queues, so holding the user lock keeps per-user order.
	for channelID := range targets {
		p.channels.Broadcast(channelID, event)
	}
	return true, nil
}
