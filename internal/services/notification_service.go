package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"chat-realtime/internal/database"
	"chat-realtime/internal/metrics"
	"chat-realtime/internal/models"
	"chat-realtime/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const (
	defaultUnreadLimit = 50
	maxUnreadLimit     = 200
)

var mentionPattern = regexp.MustCompile(`@([\p{L}\p{N}_.\-]+)`)

// ParseMentions returns the lower-cased usernames mentioned in content.
func ParseMentions(content string) map[string]struct{} {
	mentions := make(map[string]struct{})
	for _, m := range mentionPattern.FindAllStringSubmatch(content, -1) {
		name := strings.TrimRight(m[1], ".-")
		if name == "" {
			continue
		}
		mentions[strings.ToLower(name)] = struct{}{}
	}
	return mentions
}

// NotificationService is the notification dispatcher. Notifications are
// persisted first and then pushed on the recipient's personal stream.
type NotificationService struct {
	db      database.Database
	subs    SubscriptionChecker
	streams UserStreams
	workers int
	metrics *metrics.Metrics
}

func NewNotificationService(db database.Database, subs SubscriptionChecker, streams UserStreams, workers int, m *metrics.Metrics) *NotificationService {
	if workers <= 0 {
		workers = 1
	}
	return &NotificationService{
		db:      db,
		subs:    subs,
		streams: streams,
		workers: workers,
		metrics: m,
	}
}

// NotifyChannelEvent notifies every member of channel other than the sender
// who has no live connection subscribed to it. Each recipient is handled
// independently; the returned error joins every failed save.
func (s *NotificationService) NotifyChannelEvent(ctx context.Context, channel *models.Channel, msg *models.Message, senderID string) error {
	var recipients []string
	for _, id := range channel.Members {
		if id == senderID || s.subs.IsUserSubscribed(channel.ID, id) {
			continue
		}
		recipients = append(recipients, id)
	}
	if len(recipients) == 0 {
		return nil
	}

	mentions := ParseMentions(msg.Content)
	var names map[string]string
	if len(mentions) > 0 {
		var err error
		names, err = s.db.LookupUsernames(ctx, recipients)
		if err != nil {
			// Degrade to plain message notifications.
			logger.Warn("Error looking up usernames for mentions in %s: %v", msg.ID, err)
			s.metrics.StorageError("lookup_usernames")
		}
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, recipientID := range recipients {
		kind := models.NotificationMessage
		if _, ok := mentions[strings.ToLower(names[recipientID])]; ok && names[recipientID] != "" {
			kind = models.NotificationMention
		}
		n := &models.Notification{
			RecipientID: recipientID,
			Type:        kind,
			ChannelID:   channel.ID,
			MessageID:   msg.ID,
			SenderID:    senderID,
		}
		g.Go(func() error {
			if err := s.deliver(gctx, n); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// NotifyChannelInvite tells inviteeID that inviterID added them to channelID.
func (s *NotificationService) NotifyChannelInvite(ctx context.Context, channelID, inviterID, inviteeID string) (*models.Notification, error) {
	if inviteeID == "" || inviteeID == inviterID {
		return nil, nil
	}
	n := &models.Notification{
		RecipientID: inviteeID,
		Type:        models.NotificationChannelInvite,
		ChannelID:   channelID,
		SenderID:    inviterID,
	}
	if err := s.deliver(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *NotificationService) deliver(ctx context.Context, n *models.Notification) error {
	saved, err := s.db.SaveNotification(ctx, n)
	if err != nil {
		s.metrics.StorageError("save_notification")
		return fmt.Errorf("%w: save notification for %s: %w", models.ErrPersistence, n.RecipientID, err)
	}
	*n = *saved
	s.metrics.NotificationCreated(string(n.Type))
	s.streams.SendToUser(n.RecipientID, models.Event{Type: models.EventNotification, Data: n})
	return nil
}

// MarkRead flips the read flag of every id for userID. It fails without
// changing anything if an id is unknown or belongs to another user.
func (s *NotificationService) MarkRead(ctx context.Context, ids []string, userID string) error {
	if userID == "" {
		return models.ErrUnauthenticated
	}

	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil
	}

	found, err := s.db.GetNotifications(ctx, unique)
	if err != nil {
		s.metrics.StorageError("get_notifications")
		return fmt.Errorf("%w: load notifications: %w", models.ErrPersistence, err)
	}
	if len(found) != len(unique) {
		return models.ErrNotFound
	}
	for _, n := range found {
		if n.RecipientID != userID {
			return models.ErrForbidden
		}
	}

	if err := s.db.MarkNotificationsRead(ctx, unique, userID); err != nil {
		s.metrics.StorageError("mark_read")
		return fmt.Errorf("%w: mark notifications read: %w", models.ErrPersistence, err)
	}
	return nil
}

// Unread lists userID's unread notifications, newest first.
func (s *NotificationService) Unread(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}
	if limit <= 0 {
		limit = defaultUnreadLimit
	}
	if limit > maxUnreadLimit {
		limit = maxUnreadLimit
	}

	list, err := s.db.ListUnreadNotifications(ctx, userID, limit)
	if err != nil {
		s.metrics.StorageError("list_unread")
		return nil, fmt.Errorf("%w: list unread notifications: %w", models.ErrPersistence, err)
	}
	if list == nil {
		list = []*models.Notification{}
	}
	return list, nil
}
