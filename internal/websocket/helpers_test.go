package websocket

import (
	"encoding/json"
	"testing"

	"chat-realtime/internal/database"
	"chat-realtime/internal/models"
)

func newTestClient(userID string) *Client {
	var session *models.User
	if userID != "" {
		session = &models.User{ID: userID, Username: userID}
	}
	return NewClient(nil, session, 16, nil)
}

// drain returns every frame queued on c without blocking.
func drain(t *testing.T, c *Client) []models.Envelope {
	t.Helper()
	var out []models.Envelope
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var env models.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				t.Fatalf("queued frame is not an envelope: %v", err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func ofType(envs []models.Envelope, eventType models.MessageType) []models.Envelope {
	var out []models.Envelope
	for _, env := range envs {
		if env.Type == eventType {
			out = append(out, env)
		}
	}
	return out
}

func statusUpdates(t *testing.T, envs []models.Envelope) []models.StatusUpdate {
	t.Helper()
	var out []models.StatusUpdate
	for _, env := range ofType(envs, models.EventStatusUpdated) {
		var update models.StatusUpdate
		if err := json.Unmarshal(env.Data, &update); err != nil {
			t.Fatalf("decode statusUpdated: %v", err)
		}
		out = append(out, update)
	}
	return out
}

func newTestEngine(t *testing.T) (*Engine, *database.MemoryDB) {
	t.Helper()
	db := database.NewMemoryDB()
	db.AddUser("a", "alice")
	db.AddUser("b", "bob")
	db.AddUser("c", "carol")
	db.AddChannel(models.Channel{ID: "c1", Name: "general", Active: true, Members: []string{"a", "b"}})
	db.AddChannel(models.Channel{ID: "old", Name: "archived", Active: false, Members: []string{"a", "b"}})
	return NewEngine(db, db, nil), db
}

// connect registers a client for userID and binds it.
func connect(t *testing.T, e *Engine, userID string) *Client {
	t.Helper()
	c := newTestClient(userID)
	e.Register(c)
	if err := e.BindUser(c.ID(), userID); err != nil {
		t.Fatalf("BindUser(%s) error = %v", userID, err)
	}
	return c
}

func join(t *testing.T, e *Engine, c *Client, channelID string) {
	t.Helper()
	if err := e.Join(t.Context(), c.ID(), channelID); err != nil {
		t.Fatalf("Join(%s) error = %v", channelID, err)
	}
}
