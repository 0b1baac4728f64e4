package websocket

import (
	"encoding/json"
	"sync"

	"chat-realtime/internal/metrics"
	"chat-realtime/internal/models"
	"chat-realtime/pkg/logger"
)

// Hub is the live subscriber set of one channel.
type Hub struct {
	channelID   string
	mu          sync.RWMutex
	subscribers map[string]*Client
	closed      bool
}

func newHub(channelID string) *Hub {
	return &Hub{
		channelID:   channelID,
		subscribers: make(map[string]*Client),
	}
}

// add fails only when the hub has already been retired.
func (h *Hub) add(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subscribers[c.id] = c
	return true
}

// remove reports whether connID was present and whether the hub is now
// retired because it became empty.
func (h *Hub) remove(connID string) (removed, retired bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[connID]; !ok {
		return false, false
	}
	delete(h.subscribers, connID)
	if len(h.subscribers) == 0 {
		h.closed = true
		return true, true
	}
	return true, false
}

func (h *Hub) broadcast(data []byte, eventType models.MessageType, exclude map[string]struct{}) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for id, c := range h.subscribers {
		if _, skip := exclude[id]; skip {
			continue
		}
		if c.enqueue(data, eventType) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) subscriberIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.subscribers))
	for id := range h.subscribers {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) hasUser(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.subscribers {
		if c.UserID() == userID {
			return true
		}
	}
	return false
}

// Manager is the channel subscription table. Each channel has its own Hub
// so broadcasts on unrelated channels never contend; the manager lock only
// guards the hub index.
type Manager struct {
	mu      sync.Mutex
	hubs    map[string]*Hub
	metrics *metrics.Metrics
}

func NewManager(m *metrics.Metrics) *Manager {
	return &Manager{
		hubs:    make(map[string]*Hub),
		metrics: m,
	}
}

func (m *Manager) hub(channelID string) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hubs[channelID]
}

func (m *Manager) hubForJoin(channelID string) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hubs[channelID]
	if !ok {
		h = newHub(channelID)
		m.hubs[channelID] = h
		m.metrics.ChannelOpened()
	}
	return h
}

func (m *Manager) dropHub(channelID string, h *Hub) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hubs[channelID] == h {
		delete(m.hubs, channelID)
		m.metrics.ChannelClosed()
		logger.Debug("Cleaned up empty hub for channel %s", channelID)
	}
}

// Subscribe adds c to the channel's live subscriber set. It returns once
// the client is visible to every later Broadcast.
func (m *Manager) Subscribe(c *Client, channelID string) {
	for {
		h := m.hubForJoin(channelID)
		if h.add(c) {
			return
		}
		// The hub emptied and retired between lookup and add.
		m.dropHub(channelID, h)
	}
}

// Unsubscribe is idempotent.
func (m *Manager) Unsubscribe(connID, channelID string) bool {
	h := m.hub(channelID)
	if h == nil {
		return false
	}
	removed, retired := h.remove(connID)
	if retired {
		m.dropHub(channelID, h)
	}
	return removed
}

func (m *Manager) SubscribersOf(channelID string) []string {
	h := m.hub(channelID)
	if h == nil {
		return nil
	}
	return h.subscriberIDs()
}

// UserSubscribed reports whether any of the user's connections is subscribed.
func (m *Manager) UserSubscribed(channelID, userID string) bool {
	h := m.hub(channelID)
	if h == nil {
		return false
	}
	return h.hasUser(userID)
}

// Broadcast delivers event to every subscriber of channelID except the
// excluded connection ids and returns how many connections it was queued to.
func (m *Manager) Broadcast(channelID string, event models.Event, exclude ...string) int {
	h := m.hub(channelID)
	if h == nil {
		m.metrics.Fanout(0)
		return 0
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Error marshaling %s broadcast: %v", event.Type, err)
		return 0
	}

	var skip map[string]struct{}
	if len(exclude) > 0 {
		skip = make(map[string]struct{}, len(exclude))
		for _, id := range exclude {
			skip[id] = struct{}{}
		}
	}

	delivered := h.broadcast(data, event.Type, skip)
	m.metrics.Fanout(delivered)
	return delivered
}

// ChannelCount is the number of channels with live subscribers.
func (m *Manager) ChannelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hubs)
}
