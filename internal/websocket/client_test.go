package websocket

import (
	"testing"

	"chat-realtime/internal/models"
)

func TestClient_FullQueueDropsWithoutBlocking(t *testing.T) {
	c := NewClient(nil, nil, 2, nil)
	event := models.Event{Type: models.EventMessage}

	for i := 0; i < 2; i++ {
		if !c.Send(event) {
			t.Fatalf("Send() %d = false, want true", i)
		}
	}
	if c.Send(event) {
		t.Fatal("Send() on full queue = true, want false")
	}
	if got := len(drain(t, c)); got != 2 {
		t.Fatalf("queued frames = %d, want 2", got)
	}
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	c := newTestClient("a")
	c.addChannel("c1")

	if got := c.close(); len(got) != 1 || got[0] != "c1" {
		t.Fatalf("close() = %v, want [c1]", got)
	}
	if got := c.close(); got != nil {
		t.Fatalf("second close() = %v, want nil", got)
	}
	if c.addChannel("c2") {
		t.Fatal("addChannel() after close = true, want false")
	}
	if c.Send(models.Event{Type: models.EventMessage}) {
		t.Fatal("Send() after close = true, want false")
	}
}

func TestClient_SendErrorCarriesCode(t *testing.T) {
	c := newTestClient("a")
	c.SendError(models.EventMessage, models.ErrEmptyMessage)

	envs := drain(t, c)
	if len(envs) != 1 || envs[0].Type != models.EventError {
		t.Fatalf("events = %+v, want one error", envs)
	}
	if want := `{"code":"empty_message","message":"message content is empty","request_type":"message"}`; string(envs[0].Data) != want {
		t.Fatalf("error payload = %s, want %s", envs[0].Data, want)
	}
}
