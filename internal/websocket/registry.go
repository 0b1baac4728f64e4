package websocket

import (
	"sync"

	"chat-realtime/internal/models"
)

// Registry tracks live connections and the user each one is bound to.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*Client
	byUser map[string]map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]*Client),
		byUser: make(map[string]map[string]*Client),
	}
}

// Register adds client and returns its connection id.
func (r *Registry) Register(client *Client) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[client.id] = client
	return client.id
}

func (r *Registry) Get(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	return c, ok
}

// BindUser attaches userID to the connection. The handshake session must
// belong to the same user. Binding an already bound connection again is a no-op.
func (r *Registry) BindUser(connID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return models.ErrNotFound
	}
	if c.session == nil || userID == "" || c.session.ID != userID {
		return models.ErrUnauthenticated
	}

	c.bind(userID)
	conns, ok := r.byUser[userID]
	if !ok {
		conns = make(map[string]*Client)
		r.byUser[userID] = conns
	}
	conns[connID] = c
	return nil
}

// Unregister removes the connection. Unknown ids are ignored.
func (r *Registry) Unregister(connID string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	delete(r.conns, connID)

	if userID := c.UserID(); userID != "" {
		if conns, ok := r.byUser[userID]; ok {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(r.byUser, userID)
			}
		}
	}
	return c, true
}

func (r *Registry) ConnectionsOf(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.byUser[userID]))
	for id := range r.byUser[userID] {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) clientsOf(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]*Client, 0, len(r.byUser[userID]))
	for _, c := range r.byUser[userID] {
		clients = append(clients, c)
	}
	return clients
}

// CountOf is the number of live connections bound to userID.
func (r *Registry) CountOf(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

// ChannelsOfUser is the union of channels joined by the user's connections.
func (r *Registry) ChannelsOfUser(userID string) map[string]struct{} {
	channels := make(map[string]struct{})
	for _, c := range r.clientsOf(userID) {
		for _, id := range c.Channels() {
			channels[id] = struct{}{}
		}
	}
	return channels
}

// Len is the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) all() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]*Client, 0, len(r.conns))
	for _, c := range r.conns {
		clients = append(clients, c)
	}
	return clients
}
