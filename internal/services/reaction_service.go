package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chat-realtime/internal/database"
	"chat-realtime/internal/emoji"
	"chat-realtime/internal/metrics"
	"chat-realtime/internal/models"
	"chat-realtime/pkg/logger"

	"golang.org/x/sync/singleflight"
)

const persistTimeout = 5 * time.Second

// messageReactions is the authoritative in-memory reaction state of one
// message. All fields are guarded by mu.
type messageReactions struct {
	mu        sync.Mutex
	messageID string
	channelID string
	// users per emoji in the order they reacted; count is len(users).
	users       map[string][]string
	version     uint64
	persisting  bool
	dirty       bool
	saveFailed  bool
	evicted     bool
	lastTouched time.Time
}

func newMessageReactions(msg *models.Message, stored models.ReactionMap) *messageReactions {
	st := &messageReactions{
		messageID: msg.ID,
		channelID: msg.ChannelID,
		users:     make(map[string][]string, len(stored)),
	}
	for token, entry := range stored {
		if len(entry.Users) == 0 {
			continue
		}
		st.users[token] = append([]string(nil), entry.Users...)
	}
	return st
}

// toggle reports whether userID was added (true) or removed (false).
func (st *messageReactions) toggle(userID, token string) bool {
	users := st.users[token]
	for i, id := range users {
		if id == userID {
			users = append(users[:i:i], users[i+1:]...)
			if len(users) == 0 {
				delete(st.users, token)
			} else {
				st.users[token] = users
			}
			return false
		}
	}
	st.users[token] = append(users, userID)
	return true
}

func (st *messageReactions) snapshot() models.ReactionMap {
	out := make(models.ReactionMap, len(st.users))
	for token, users := range st.users {
		out[token] = models.ReactionEntry{
			Count: len(users),
			Users: append([]string(nil), users...),
		}
	}
	return out
}

// ReactionService is the reaction aggregator. Toggles on one message are
// serialized by that message's lock; different messages never contend.
type ReactionService struct {
	messages    database.MessageRepository
	store       database.ReactionRepository
	users       database.UserRepository
	channels    *ChannelService
	broadcaster ChannelBroadcaster
	ttl         time.Duration
	metrics     *metrics.Metrics
	now         func() time.Time

	mu     sync.RWMutex
	states map[string]*messageReactions
	group  singleflight.Group
	wg     sync.WaitGroup
}

func NewReactionService(
	messages database.MessageRepository,
	store database.ReactionRepository,
	users database.UserRepository,
	channels *ChannelService,
	broadcaster ChannelBroadcaster,
	ttl time.Duration,
	m *metrics.Metrics,
) *ReactionService {
	return &ReactionService{
		messages:    messages,
		store:       store,
		users:       users,
		channels:    channels,
		broadcaster: broadcaster,
		ttl:         ttl,
		metrics:     m,
		now:         time.Now,
		states:      make(map[string]*messageReactions),
	}
}

// load returns the cached state for messageID, reading it from storage on
// first use. Storage is never read while a state lock is held.
func (s *ReactionService) load(ctx context.Context, messageID string) (*messageReactions, error) {
	s.mu.RLock()
	st, ok := s.states[messageID]
	s.mu.RUnlock()
	if ok {
		return st, nil
	}

	v, err, _ := s.group.Do(messageID, func() (interface{}, error) {
		msg, err := s.messages.GetMessage(ctx, messageID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, models.ErrNotFound
			}
			s.metrics.StorageError("get_message")
			return nil, fmt.Errorf("%w: load message %s: %w", models.ErrPersistence, messageID, err)
		}
		stored, err := s.store.LoadReactionSnapshot(ctx, messageID)
		if err != nil {
			s.metrics.StorageError("load_reactions")
			return nil, fmt.Errorf("%w: load reactions for %s: %w", models.ErrPersistence, messageID, err)
		}

		fresh := newMessageReactions(msg, emoji.DecodeMap(stored))
		fresh.lastTouched = s.now()

		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.states[messageID]; ok {
			return existing, nil
		}
		s.states[messageID] = fresh
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*messageReactions), nil
}

// Toggle adds userID's reaction token to the message, or removes it if it
// is already present, then broadcasts the full reaction map to the channel.
func (s *ReactionService) Toggle(ctx context.Context, messageID, channelID, userID, token string) (*models.ReactionDelta, error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}
	if _, err := s.channels.RequireMember(ctx, channelID, userID); err != nil {
		return nil, err
	}

	for {
		st, err := s.load(ctx, messageID)
		if err != nil {
			return nil, err
		}

		st.mu.Lock()
		if st.evicted {
			st.mu.Unlock()
			continue
		}
		if st.channelID != channelID {
			st.mu.Unlock()
			return nil, models.ErrNotFound
		}

		added := st.toggle(userID, token)
		st.version++
		st.lastTouched = s.now()
		reactions := st.snapshot()
		delta := &models.ReactionDelta{
			MessageID: messageID,
			ChannelID: channelID,
			Emoji:     token,
			UserID:    userID,
			Added:     added,
			Count:     reactions[token].Count,
			Version:   st.version,
			Reactions: reactions,
		}

		// Queued under the message lock so subscribers see versions in order.
		s.broadcaster.BroadcastToChannel(channelID, models.Event{
			Type: models.EventAddReaction,
			Data: models.ReactionsUpdate{MessageID: messageID, Version: st.version, Reactions: reactions},
		})
		start := s.schedulePersistLocked(st)
		st.mu.Unlock()

		if start {
			go s.flush(st)
		}
		s.metrics.ReactionToggled(added)
		return delta, nil
	}
}

func (s *ReactionService) schedulePersistLocked(st *messageReactions) bool {
	if st.persisting {
		st.dirty = true
		return false
	}
	st.persisting = true
	s.wg.Add(1)
	return true
}

// flush writes snapshots until no newer mutation is pending, so the last
// write always carries the latest state.
func (s *ReactionService) flush(st *messageReactions) {
	defer s.wg.Done()
	for {
		st.mu.Lock()
		snapshot := emoji.EncodeMap(st.snapshot())
		st.dirty = false
		st.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		err := s.store.SaveReactionSnapshot(ctx, st.messageID, snapshot)
		cancel()

		st.mu.Lock()
		if err != nil {
			logger.Warn("Error persisting reactions for message %s: %v", st.messageID, err)
			s.metrics.StorageError("save_reactions")
			st.saveFailed = true
		} else {
			st.saveFailed = false
		}
		if !st.dirty {
			st.persisting = false
			st.mu.Unlock()
			return
		}
		st.mu.Unlock()
	}
}

// Snapshot returns the current reaction map for a message.
func (s *ReactionService) Snapshot(ctx context.Context, messageID string) (models.ReactionMap, error) {
	st, err := s.load(ctx, messageID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snapshot(), nil
}

// DetailsOf resolves reacting users to usernames for a member of the
// message's channel. The result is a point in time snapshot and may trail
// concurrent toggles.
func (s *ReactionService) DetailsOf(ctx context.Context, messageID, userID string) (map[string]models.ReactionDetail, error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}
	st, err := s.load(ctx, messageID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	channelID := st.channelID
	reactions := st.snapshot()
	st.mu.Unlock()

	if _, err := s.channels.RequireMember(ctx, channelID, userID); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, entry := range reactions {
		for _, id := range entry.Users {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	names, err := s.users.LookupUsernames(ctx, ids)
	if err != nil {
		s.metrics.StorageError("lookup_usernames")
		return nil, fmt.Errorf("%w: lookup usernames: %w", models.ErrPersistence, err)
	}

	details := make(map[string]models.ReactionDetail, len(reactions))
	for token, entry := range reactions {
		usernames := make([]string, 0, len(entry.Users))
		for _, id := range entry.Users {
			if name, ok := names[id]; ok {
				usernames = append(usernames, name)
			} else {
				usernames = append(usernames, id)
			}
		}
		details[token] = models.ReactionDetail{Count: entry.Count, Usernames: usernames}
	}
	return details, nil
}

// Sweep evicts states idle for longer than the TTL and retries snapshots
// whose last save failed. It returns the number of evicted states.
func (s *ReactionService) Sweep() int {
	now := s.now()

	s.mu.RLock()
	candidates := make([]*messageReactions, 0, len(s.states))
	for _, st := range s.states {
		candidates = append(candidates, st)
	}
	s.mu.RUnlock()

	evicted := 0
	for _, st := range candidates {
		st.mu.Lock()
		if st.saveFailed && !st.persisting {
			st.persisting = true
			s.wg.Add(1)
			st.mu.Unlock()
			go s.flush(st)
			continue
		}
		idle := now.Sub(st.lastTouched) > s.ttl
		if !idle || st.persisting || st.saveFailed {
			st.mu.Unlock()
			continue
		}
		st.evicted = true
		st.mu.Unlock()

		s.mu.Lock()
		if s.states[st.messageID] == st {
			delete(s.states, st.messageID)
		}
		s.mu.Unlock()
		s.group.Forget(st.messageID)
		evicted++
	}
	return evicted
}

// Run sweeps periodically until ctx is cancelled.
func (s *ReactionService) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Debug("Evicted %d idle reaction states", n)
			}
		}
	}
}

// Wait blocks until pending snapshot writes have finished.
func (s *ReactionService) Wait() {
	s.wg.Wait()
}
