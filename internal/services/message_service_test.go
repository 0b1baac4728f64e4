package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"chat-realtime/internal/database"
	"chat-realtime/internal/models"
)

type messageFixture struct {
	db          *database.MemoryDB
	broadcaster *recordingBroadcaster
	subs        *fakeSubscriptions
	streams     *recordingStreams
	svc         *MessageService
	notify      *NotificationService
}

func newMessageFixture(t *testing.T) *messageFixture {
	t.Helper()
	f := &messageFixture{
		db:          seedDB(t),
		broadcaster: &recordingBroadcaster{},
		subs:        newFakeSubscriptions(),
		streams:     newRecordingStreams(),
	}
	channels := NewChannelService(f.db, time.Minute, nil)
	conns := fakeConns{"connA": "a", "connB": "b", "connC": "c", "anon": ""}
	f.notify = NewNotificationService(f.db, f.subs, f.streams, 4, nil)
	f.svc = NewMessageService(f.db, channels, conns, f.broadcaster, f.notify, 100, nil)
	return f
}

func TestMessageService_PublishMentionNotifiesAbsentMember(t *testing.T) {
	f := newMessageFixture(t)
	f.subs.subscribe("c1", "a")

	msg, err := f.svc.Publish(context.Background(), "connA", "c1", "hello @Bob")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	f.svc.Wait()

	events := f.broadcaster.all()
	if len(events) != 1 || events[0].channelID != "c1" || events[0].event.Type != models.EventMessage {
		t.Fatalf("broadcasts = %+v, want one message event on c1", events)
	}
	if got := events[0].event.Data.(*models.Message); got.ID != msg.ID {
		t.Fatalf("broadcast message id = %s, want %s", got.ID, msg.ID)
	}

	unread, err := f.notify.Unread(context.Background(), "b", 0)
	if err != nil {
		t.Fatalf("Unread() error = %v", err)
	}
	if len(unread) != 1 {
		t.Fatalf("unread for b = %d, want 1", len(unread))
	}
	if unread[0].Type != models.NotificationMention || unread[0].MessageID != msg.ID || unread[0].SenderID != "a" {
		t.Fatalf("notification = %+v, want mention for %s from a", unread[0], msg.ID)
	}
	if got := f.streams.eventsFor("b"); len(got) != 1 || got[0].Type != models.EventNotification {
		t.Fatalf("stream events for b = %+v, want one notification", got)
	}

	sender, err := f.notify.Unread(context.Background(), "a", 0)
	if err != nil {
		t.Fatalf("Unread() error = %v", err)
	}
	if len(sender) != 0 {
		t.Fatalf("sender received %d notifications, want 0", len(sender))
	}
}

func TestMessageService_PublishSubscribedMemberGetsNoNotification(t *testing.T) {
	f := newMessageFixture(t)
	f.subs.subscribe("c1", "a")
	f.subs.subscribe("c1", "b")

	if _, err := f.svc.Publish(context.Background(), "connA", "c1", "hi"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	f.svc.Wait()

	unread, _ := f.notify.Unread(context.Background(), "b", 0)
	if len(unread) != 0 {
		t.Fatalf("unread for b = %d, want 0", len(unread))
	}
}

func TestMessageService_PublishValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		connID    string
		channelID string
		content   string
		wantErr   error
	}{
		{name: "empty", connID: "connA", channelID: "c1", content: "", wantErr: models.ErrEmptyMessage},
		{name: "whitespace only", connID: "connA", channelID: "c1", content: " \t\n ", wantErr: models.ErrEmptyMessage},
		{name: "too long", connID: "connA", channelID: "c1", content: strings.Repeat("x", 101), wantErr: models.ErrMessageTooLong},
		{name: "not a member", connID: "connC", channelID: "c1", content: "hi", wantErr: models.ErrNotAMember},
		{name: "unbound connection", connID: "anon", channelID: "c1", content: "hi", wantErr: models.ErrUnauthenticated},
		{name: "unknown connection", connID: "ghost", channelID: "c1", content: "hi", wantErr: models.ErrNotFound},
		{name: "unknown channel", connID: "connA", channelID: "nope", content: "hi", wantErr: models.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMessageFixture(t)
			_, err := f.svc.Publish(context.Background(), tt.connID, tt.channelID, tt.content)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Publish() error = %v, want %v", err, tt.wantErr)
			}
			f.svc.Wait()
			if n := len(f.broadcaster.all()); n != 0 {
				t.Fatalf("broadcasts = %d, want 0", n)
			}
			if n := f.db.MessageCount(); n != 0 {
				t.Fatalf("persisted messages = %d, want 0", n)
			}
		})
	}
}

func TestMessageService_PublishPersistenceFailureIsNotBroadcast(t *testing.T) {
	f := newMessageFixture(t)
	f.db.Fail("SaveMessage", errors.New("disk full"))

	_, err := f.svc.Publish(context.Background(), "connA", "c1", "hi")
	if !errors.Is(err, models.ErrPersistence) {
		t.Fatalf("Publish() error = %v, want ErrPersistence", err)
	}
	f.svc.Wait()
	if n := len(f.broadcaster.all()); n != 0 {
		t.Fatalf("broadcasts = %d, want 0", n)
	}
	unread, _ := f.notify.Unread(context.Background(), "b", 0)
	if len(unread) != 0 {
		t.Fatalf("unread for b = %d, want 0", len(unread))
	}
}

func TestMessageService_PublishInactiveChannel(t *testing.T) {
	f := newMessageFixture(t)
	// Warm the cache, then soft-delete behind it.
	if _, err := f.svc.Publish(context.Background(), "connA", "c1", "first"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	f.db.SetChannelActive("c1", false)

	_, err := f.svc.Publish(context.Background(), "connA", "c1", "second")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Publish() error = %v, want ErrNotFound", err)
	}
	f.svc.Wait()
	if n := f.db.MessageCount(); n != 1 {
		t.Fatalf("persisted messages = %d, want 1", n)
	}
}

func TestMessageService_PublishStoresTrimmedContent(t *testing.T) {
	f := newMessageFixture(t)
	msg, err := f.svc.Publish(context.Background(), "connA", "c1", "  hi there \n")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	f.svc.Wait()
	if msg.Content != "hi there" {
		t.Fatalf("content = %q, want %q", msg.Content, "hi there")
	}
}
