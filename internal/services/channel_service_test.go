package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"chat-realtime/internal/database"
	"chat-realtime/internal/models"
)

type countingChannels struct {
	*database.MemoryDB
	loads atomic.Int32
}

func (c *countingChannels) GetChannel(ctx context.Context, channelID string) (*models.Channel, error) {
	c.loads.Add(1)
	return c.MemoryDB.GetChannel(ctx, channelID)
}

func TestChannelService_GetChannelCachesWithinTTL(t *testing.T) {
	repo := &countingChannels{MemoryDB: seedDB(t)}
	svc := NewChannelService(repo, time.Minute, nil)
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.GetChannel(ctx, "c1"); err != nil {
			t.Fatalf("GetChannel() error = %v", err)
		}
	}
	if got := repo.loads.Load(); got != 1 {
		t.Fatalf("loads = %d, want 1", got)
	}

	now = now.Add(2 * time.Minute)
	if _, err := svc.GetChannel(ctx, "c1"); err != nil {
		t.Fatalf("GetChannel() error = %v", err)
	}
	if got := repo.loads.Load(); got != 2 {
		t.Fatalf("loads after expiry = %d, want 2", got)
	}

	svc.Invalidate("c1")
	if _, err := svc.GetChannel(ctx, "c1"); err != nil {
		t.Fatalf("GetChannel() error = %v", err)
	}
	if got := repo.loads.Load(); got != 3 {
		t.Fatalf("loads after invalidate = %d, want 3", got)
	}
}

func TestChannelService_RequireMember(t *testing.T) {
	db := seedDB(t)
	db.AddChannel(models.Channel{ID: "gone", Active: false, Members: []string{"a"}})
	svc := NewChannelService(db, time.Minute, nil)

	tests := []struct {
		name      string
		channelID string
		userID    string
		wantErr   error
	}{
		{name: "member", channelID: "c1", userID: "a"},
		{name: "non member", channelID: "c1", userID: "c", wantErr: models.ErrNotAMember},
		{name: "unknown channel", channelID: "nope", userID: "a", wantErr: models.ErrNotFound},
		{name: "inactive channel", channelID: "gone", userID: "a", wantErr: models.ErrNotFound},
		{name: "empty channel id", channelID: "", userID: "a", wantErr: models.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RequireMember(context.Background(), tt.channelID, tt.userID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("RequireMember() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChannelService_StorageFailureIsPersistenceError(t *testing.T) {
	db := seedDB(t)
	db.Fail("GetChannel", errors.New("connection refused"))
	svc := NewChannelService(db, time.Minute, nil)

	_, err := svc.GetChannel(context.Background(), "c1")
	if !errors.Is(err, models.ErrPersistence) {
		t.Fatalf("GetChannel() error = %v, want ErrPersistence", err)
	}
}

func TestChannelService_IsActiveDropsSoftDeletedChannel(t *testing.T) {
	repo := &countingChannels{MemoryDB: seedDB(t)}
	svc := NewChannelService(repo, time.Hour, nil)
	ctx := context.Background()

	if _, err := svc.GetChannel(ctx, "c1"); err != nil {
		t.Fatalf("GetChannel() error = %v", err)
	}
	repo.SetChannelActive("c1", false)

	active, err := svc.IsActive(ctx, "c1")
	if err != nil {
		t.Fatalf("IsActive() error = %v", err)
	}
	if active {
		t.Fatal("IsActive() = true, want false")
	}
	if _, err := svc.RequireMember(ctx, "c1", "a"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("RequireMember() after soft delete error = %v, want ErrNotFound", err)
	}
}
