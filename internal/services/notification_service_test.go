package services

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"chat-realtime/internal/models"
)

func TestParseMentions(t *testing.T) {
	tests := []struct {
		content string
		want    []string
	}{
		{content: "hello @Bob", want: []string{"bob"}},
		{content: "@alice, @carol.", want: []string{"alice", "carol"}},
		{content: "mail me at bob@example", want: []string{"example"}},
		{content: "no mentions here", want: nil},
		{content: "@ alone", want: nil},
		{content: "@jürgen_1 and @o.neil", want: []string{"jürgen_1", "o.neil"}},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			got := ParseMentions(tt.content)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseMentions(%q) = %v, want %v", tt.content, got, tt.want)
			}
			for _, name := range tt.want {
				if _, ok := got[name]; !ok {
					t.Fatalf("ParseMentions(%q) = %v, missing %q", tt.content, got, name)
				}
			}
		})
	}
}

func TestNotificationService_NotifyChannelEventTypes(t *testing.T) {
	db := seedDB(t)
	db.AddChannel(models.Channel{ID: "team", Active: true, Members: []string{"a", "b", "c"}})
	streams := newRecordingStreams()
	svc := NewNotificationService(db, newFakeSubscriptions(), streams, 2, nil)
	msg := saveMessage(t, db, "team", "a", "ping @carol")
	channel, _ := db.GetChannel(context.Background(), "team")

	if err := svc.NotifyChannelEvent(context.Background(), channel, msg, "a"); err != nil {
		t.Fatalf("NotifyChannelEvent() error = %v", err)
	}

	want := map[string]models.NotificationType{
		"b": models.NotificationMessage,
		"c": models.NotificationMention,
	}
	for userID, kind := range want {
		unread, err := svc.Unread(context.Background(), userID, 10)
		if err != nil {
			t.Fatalf("Unread(%s) error = %v", userID, err)
		}
		if len(unread) != 1 || unread[0].Type != kind {
			t.Fatalf("Unread(%s) = %+v, want one %s", userID, unread, kind)
		}
		if len(streams.eventsFor(userID)) != 1 {
			t.Fatalf("stream events for %s = %d, want 1", userID, len(streams.eventsFor(userID)))
		}
	}
}

func TestNotificationService_PartialFailureReturnsPersistenceError(t *testing.T) {
	db := seedDB(t)
	db.Fail("SaveNotification", errors.New("insert failed"))
	streams := newRecordingStreams()
	svc := NewNotificationService(db, newFakeSubscriptions(), streams, 2, nil)
	msg := saveMessage(t, db, "c1", "a", "hi")
	channel, _ := db.GetChannel(context.Background(), "c1")

	err := svc.NotifyChannelEvent(context.Background(), channel, msg, "a")
	if !errors.Is(err, models.ErrPersistence) {
		t.Fatalf("NotifyChannelEvent() error = %v, want ErrPersistence", err)
	}
	if n := len(streams.eventsFor("b")); n != 0 {
		t.Fatalf("pushed %d notifications, want 0 for unsaved", n)
	}
}

func TestNotificationService_NotifyChannelInvite(t *testing.T) {
	db := seedDB(t)
	streams := newRecordingStreams()
	svc := NewNotificationService(db, newFakeSubscriptions(), streams, 1, nil)

	n, err := svc.NotifyChannelInvite(context.Background(), "c1", "a", "c")
	if err != nil {
		t.Fatalf("NotifyChannelInvite() error = %v", err)
	}
	if n.Type != models.NotificationChannelInvite || n.ID == "" || n.MessageID != "" {
		t.Fatalf("notification = %+v, want saved channel_invite without message", n)
	}
	if len(streams.eventsFor("c")) != 1 {
		t.Fatal("invite was not pushed to the invitee")
	}
}

func TestNotificationService_MarkRead(t *testing.T) {
	db := seedDB(t)
	svc := NewNotificationService(db, newFakeSubscriptions(), newRecordingStreams(), 1, nil)
	ctx := context.Background()

	forB, err := svc.NotifyChannelInvite(ctx, "c1", "a", "b")
	if err != nil {
		t.Fatalf("NotifyChannelInvite() error = %v", err)
	}
	forC, err := svc.NotifyChannelInvite(ctx, "c1", "a", "c")
	if err != nil {
		t.Fatalf("NotifyChannelInvite() error = %v", err)
	}

	tests := []struct {
		name    string
		ids     []string
		userID  string
		wantErr error
	}{
		{name: "foreign notification", ids: []string{forB.ID, forC.ID}, userID: "b", wantErr: models.ErrForbidden},
		{name: "unknown id", ids: []string{"missing"}, userID: "b", wantErr: models.ErrNotFound},
		{name: "unauthenticated", ids: []string{forB.ID}, userID: "", wantErr: models.ErrUnauthenticated},
		{name: "own notification", ids: []string{forB.ID, forB.ID}, userID: "b"},
		{name: "already read", ids: []string{forB.ID}, userID: "b"},
		{name: "no ids", ids: nil, userID: "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.MarkRead(ctx, tt.ids, tt.userID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("MarkRead() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	unreadB, _ := svc.Unread(ctx, "b", 0)
	if len(unreadB) != 0 {
		t.Fatalf("unread for b = %d, want 0", len(unreadB))
	}
	unreadC, _ := svc.Unread(ctx, "c", 0)
	if len(unreadC) != 1 {
		t.Fatalf("unread for c = %d, want 1 after forbidden request", len(unreadC))
	}
}

func TestNotificationService_UnreadNewestFirst(t *testing.T) {
	db := seedDB(t)
	svc := NewNotificationService(db, newFakeSubscriptions(), newRecordingStreams(), 1, nil)
	ctx := context.Background()

	var ids []string
	for _, channelID := range []string{"x", "y", "z"} {
		n, err := svc.NotifyChannelInvite(ctx, channelID, "a", "b")
		if err != nil {
			t.Fatalf("NotifyChannelInvite() error = %v", err)
		}
		ids = append(ids, n.ID)
	}

	unread, err := svc.Unread(ctx, "b", 2)
	if err != nil {
		t.Fatalf("Unread() error = %v", err)
	}
	if len(unread) != 2 {
		t.Fatalf("unread = %d, want 2", len(unread))
	}
	got := []string{unread[0].ID, unread[1].ID}
	if want := []string{ids[2], ids[1]}; !reflect.DeepEqual(got, want) {
		t.Fatalf("unread ids = %v, want %v", got, want)
	}
}
