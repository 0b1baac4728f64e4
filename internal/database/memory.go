package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat-realtime/internal/models"

	"github.com/google/uuid"
)

// MemoryDB is an in-process Database. It backs DB_DRIVER=memory and the
// package tests. Failures can be injected per operation name.
type MemoryDB struct {
	mu            sync.RWMutex
	users         map[string]*models.User
	channels      map[string]*models.Channel
	messages      map[string]*models.Message
	reactions     map[string]models.ReactionMap
	notifications map[string]*notificationRow
	failures      map[string]error
	seq           int64
}

type notificationRow struct {
	n   models.Notification
	seq int64
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:         make(map[string]*models.User),
		channels:      make(map[string]*models.Channel),
		messages:      make(map[string]*models.Message),
		reactions:     make(map[string]models.ReactionMap),
		notifications: make(map[string]*notificationRow),
		failures:      make(map[string]error),
	}
}

func (m *MemoryDB) Close() error {
	return nil
}

func (m *MemoryDB) AddUser(id, username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = &models.User{ID: id, Username: username}
}

// AddChannel stores a copy of channel. Active defaults to the value given.
func (m *MemoryDB) AddChannel(channel models.Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := channel
	c.Members = append([]string(nil), channel.Members...)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	m.channels[c.ID] = &c
}

func (m *MemoryDB) SetChannelActive(channelID string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.channels[channelID]; ok {
		c.Active = active
	}
}

// Fail makes the named operation return err until cleared with a nil err.
func (m *MemoryDB) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

func (m *MemoryDB) failure(op string) error {
	return m.failures[op]
}

// MessageCount returns the number of persisted messages.
func (m *MemoryDB) MessageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

func (m *MemoryDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("GetUserByID"); err != nil {
		return nil, err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *MemoryDB) LookupUsernames(ctx context.Context, userIDs []string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("LookupUsernames"); err != nil {
		return nil, err
	}
	names := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if u, ok := m.users[id]; ok {
			names[id] = u.Username
		}
	}
	return names, nil
}

func (m *MemoryDB) GetChannel(ctx context.Context, channelID string) (*models.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("GetChannel"); err != nil {
		return nil, err
	}
	c, ok := m.channels[channelID]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *c
	copied.Members = append([]string(nil), c.Members...)
	return &copied, nil
}

func (m *MemoryDB) GetChannelMembership(ctx context.Context, channelID string) ([]string, error) {
	c, err := m.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return c.Members, nil
}

func (m *MemoryDB) IsActive(ctx context.Context, channelID string) (bool, error) {
	c, err := m.GetChannel(ctx, channelID)
	if err != nil {
		return false, err
	}
	return c.Active, nil
}

func (m *MemoryDB) SaveMessage(ctx context.Context, channelID, senderID, content string) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("SaveMessage"); err != nil {
		return nil, err
	}
	msg := &models.Message{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	m.messages[msg.ID] = msg
	copied := *msg
	return &copied, nil
}

func (m *MemoryDB) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("GetMessage"); err != nil {
		return nil, err
	}
	msg, ok := m.messages[messageID]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *msg
	return &copied, nil
}

func (m *MemoryDB) SaveReactionSnapshot(ctx context.Context, messageID string, reactions models.ReactionMap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("SaveReactionSnapshot"); err != nil {
		return err
	}
	m.reactions[messageID] = reactions.Clone()
	return nil
}

func (m *MemoryDB) LoadReactionSnapshot(ctx context.Context, messageID string) (models.ReactionMap, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("LoadReactionSnapshot"); err != nil {
		return nil, err
	}
	r, ok := m.reactions[messageID]
	if !ok {
		return models.ReactionMap{}, nil
	}
	return r.Clone(), nil
}

func (m *MemoryDB) SaveNotification(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("SaveNotification"); err != nil {
		return nil, err
	}
	saved := *n
	if saved.ID == "" {
		saved.ID = uuid.NewString()
	}
	saved.CreatedAt = time.Now()
	m.seq++
	m.notifications[saved.ID] = &notificationRow{n: saved, seq: m.seq}
	return &saved, nil
}

func (m *MemoryDB) GetNotifications(ctx context.Context, ids []string) ([]*models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("GetNotifications"); err != nil {
		return nil, err
	}
	var out []*models.Notification
	for _, id := range ids {
		if row, ok := m.notifications[id]; ok {
			copied := row.n
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *MemoryDB) MarkNotificationsRead(ctx context.Context, ids []string, recipientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("MarkNotificationsRead"); err != nil {
		return err
	}
	for _, id := range ids {
		if row, ok := m.notifications[id]; ok && row.n.RecipientID == recipientID {
			row.n.Read = true
		}
	}
	return nil
}

func (m *MemoryDB) ListUnreadNotifications(ctx context.Context, recipientID string, limit int) ([]*models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("ListUnreadNotifications"); err != nil {
		return nil, err
	}
	var rows []*notificationRow
	for _, row := range m.notifications {
		if row.n.RecipientID == recipientID && !row.n.Read {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]*models.Notification, 0, len(rows))
	for _, row := range rows {
		copied := row.n
		out = append(out, &copied)
	}
	return out, nil
}
