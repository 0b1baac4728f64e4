package services

import (
	"context"
	"sync"
	"testing"

	"chat-realtime/internal/database"
	"chat-realtime/internal/models"
)

type broadcast struct {
	channelID string
	event     models.Event
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []broadcast
}

func (b *recordingBroadcaster) BroadcastToChannel(channelID string, event models.Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcast{channelID: channelID, event: event})
	return 1
}

func (b *recordingBroadcaster) all() []broadcast {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broadcast(nil), b.events...)
}

// fakeConns maps connection ids to users. An empty user means unbound.
type fakeConns map[string]string

func (f fakeConns) UserOf(connID string) (string, error) {
	userID, ok := f[connID]
	if !ok {
		return "", models.ErrNotFound
	}
	if userID == "" {
		return "", models.ErrUnauthenticated
	}
	return userID, nil
}

type fakeSubscriptions struct {
	mu   sync.Mutex
	subs map[string]map[string]bool
}

func newFakeSubscriptions() *fakeSubscriptions {
	return &fakeSubscriptions{subs: make(map[string]map[string]bool)}
}

func (f *fakeSubscriptions) subscribe(channelID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[channelID] == nil {
		f.subs[channelID] = make(map[string]bool)
	}
	f.subs[channelID][userID] = true
}

func (f *fakeSubscriptions) IsUserSubscribed(channelID, userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[channelID][userID]
}

type recordingStreams struct {
	mu   sync.Mutex
	sent map[string][]models.Event
}

func newRecordingStreams() *recordingStreams {
	return &recordingStreams{sent: make(map[string][]models.Event)}
}

func (r *recordingStreams) SendToUser(userID string, event models.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent[userID] = append(r.sent[userID], event)
	return 1
}

func (r *recordingStreams) eventsFor(userID string) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Event(nil), r.sent[userID]...)
}

// seedDB returns a store with users a, b, c (alice, bob, carol) and channel
// c1 with members a and b.
func seedDB(t *testing.T) *database.MemoryDB {
	t.Helper()
	db := database.NewMemoryDB()
	db.AddUser("a", "alice")
	db.AddUser("b", "bob")
	db.AddUser("c", "carol")
	db.AddChannel(models.Channel{ID: "c1", Name: "general", CreatorID: "a", Active: true, Members: []string{"a", "b"}})
	return db
}

func saveMessage(t *testing.T, db *database.MemoryDB, channelID, senderID, content string) *models.Message {
	t.Helper()
	msg, err := db.SaveMessage(context.Background(), channelID, senderID, content)
	if err != nil {
		t.Fatalf("SaveMessage() error = %v", err)
	}
	return msg
}
