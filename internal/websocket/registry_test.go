package websocket

import (
	"errors"
	"testing"

	"chat-realtime/internal/models"
)

func TestRegistry_MultipleConnectionsPerUser(t *testing.T) {
	r := NewRegistry()
	tab1, tab2 := newTestClient("a"), newTestClient("a")
	r.Register(tab1)
	r.Register(tab2)

	for _, c := range []*Client{tab1, tab2} {
		if err := r.BindUser(c.ID(), "a"); err != nil {
			t.Fatalf("BindUser() error = %v", err)
		}
	}
	// Rebinding is a no-op.
	if err := r.BindUser(tab1.ID(), "a"); err != nil {
		t.Fatalf("BindUser() again error = %v", err)
	}

	if got := r.CountOf("a"); got != 2 {
		t.Fatalf("CountOf(a) = %d, want 2", got)
	}
	if got := len(r.ConnectionsOf("a")); got != 2 {
		t.Fatalf("ConnectionsOf(a) = %d ids, want 2", got)
	}

	if _, ok := r.Unregister(tab1.ID()); !ok {
		t.Fatal("Unregister() ok = false, want true")
	}
	if _, ok := r.Unregister(tab1.ID()); ok {
		t.Fatal("second Unregister() ok = true, want false")
	}
	if got := r.CountOf("a"); got != 1 {
		t.Fatalf("CountOf(a) after unregister = %d, want 1", got)
	}
	if got := r.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
}

func TestRegistry_BindUserErrors(t *testing.T) {
	r := NewRegistry()
	anonymous := newTestClient("")
	alice := newTestClient("a")
	r.Register(anonymous)
	r.Register(alice)

	tests := []struct {
		name    string
		connID  string
		userID  string
		wantErr error
	}{
		{name: "unknown connection", connID: "missing", userID: "a", wantErr: models.ErrNotFound},
		{name: "no session", connID: anonymous.ID(), userID: "a", wantErr: models.ErrUnauthenticated},
		{name: "other user", connID: alice.ID(), userID: "b", wantErr: models.ErrUnauthenticated},
		{name: "empty user", connID: alice.ID(), userID: "", wantErr: models.ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.BindUser(tt.connID, tt.userID); !errors.Is(err, tt.wantErr) {
				t.Fatalf("BindUser() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if got := r.CountOf("b"); got != 0 {
		t.Fatalf("CountOf(b) = %d, want 0", got)
	}
}

func TestRegistry_ChannelsOfUser(t *testing.T) {
	r := NewRegistry()
	tab1, tab2 := newTestClient("a"), newTestClient("a")
	for _, c := range []*Client{tab1, tab2} {
		r.Register(c)
		if err := r.BindUser(c.ID(), "a"); err != nil {
			t.Fatalf("BindUser() error = %v", err)
		}
	}
	tab1.addChannel("c1")
	tab2.addChannel("c1")
	tab2.addChannel("c2")

	got := r.ChannelsOfUser("a")
	if len(got) != 2 {
		t.Fatalf("ChannelsOfUser(a) = %v, want c1 and c2", got)
	}
	for _, id := range []string{"c1", "c2"} {
		if _, ok := got[id]; !ok {
			t.Fatalf("ChannelsOfUser(a) = %v, missing %s", got, id)
		}
	}
}
