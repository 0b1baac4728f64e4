package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chat-realtime/internal/database"
	"chat-realtime/internal/metrics"
	"chat-realtime/internal/models"

	"golang.org/x/sync/singleflight"
)

type cachedChannel struct {
	channel  *models.Channel
	loadedAt time.Time
}

// ChannelService is the routing cache over the authoritative channel store.
// Concurrent misses for the same channel share one load.
type ChannelService struct {
	db      database.ChannelRepository
	ttl     time.Duration
	metrics *metrics.Metrics
	now     func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedChannel
	group singleflight.Group
}

func NewChannelService(db database.ChannelRepository, ttl time.Duration, m *metrics.Metrics) *ChannelService {
	return &ChannelService{
		db:      db,
		ttl:     ttl,
		metrics: m,
		now:     time.Now,
		cache:   make(map[string]cachedChannel),
	}
}

// GetChannel returns the channel with its membership list. The returned
// value is shared and must not be modified.
func (s *ChannelService) GetChannel(ctx context.Context, channelID string) (*models.Channel, error) {
	if channelID == "" {
		return nil, models.ErrNotFound
	}

	s.mu.RLock()
	entry, ok := s.cache[channelID]
	s.mu.RUnlock()
	if ok && s.now().Sub(entry.loadedAt) < s.ttl {
		return entry.channel, nil
	}

	v, err, _ := s.group.Do(channelID, func() (interface{}, error) {
		channel, err := s.db.GetChannel(ctx, channelID)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[channelID] = cachedChannel{channel: channel, loadedAt: s.now()}
		s.mu.Unlock()
		return channel, nil
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.metrics.StorageError("get_channel")
		return nil, fmt.Errorf("%w: load channel %s: %w", models.ErrPersistence, channelID, err)
	}
	return v.(*models.Channel), nil
}

// Invalidate drops the cached record so the next read reloads it.
func (s *ChannelService) Invalidate(channelID string) {
	s.mu.Lock()
	delete(s.cache, channelID)
	s.mu.Unlock()
	s.group.Forget(channelID)
}

// RequireMember returns the channel if it is active and userID is a member.
func (s *ChannelService) RequireMember(ctx context.Context, channelID, userID string) (*models.Channel, error) {
	channel, err := s.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !channel.Active {
		return nil, models.ErrNotFound
	}
	if !channel.HasMember(userID) {
		return nil, models.ErrNotAMember
	}
	return channel, nil
}

// IsActive asks the store directly, bypassing the cache, and drops the
// cached record when the channel has been soft-deleted.
func (s *ChannelService) IsActive(ctx context.Context, channelID string) (bool, error) {
	active, err := s.db.IsActive(ctx, channelID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.Invalidate(channelID)
			return false, models.ErrNotFound
		}
		s.metrics.StorageError("is_active")
		return false, fmt.Errorf("%w: check channel %s: %w", models.ErrPersistence, channelID, err)
	}
	if !active {
		s.Invalidate(channelID)
	}
	return active, nil
}
