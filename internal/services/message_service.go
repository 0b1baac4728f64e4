package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"chat-realtime/internal/database"
	"chat-realtime/internal/metrics"
	"chat-realtime/internal/models"
	"chat-realtime/pkg/logger"
)

// MessageService is the message router: validate, persist, broadcast, then
// notify absent members in the background.
type MessageService struct {
	db          database.MessageRepository
	channels    *ChannelService
	conns       Connections
	broadcaster ChannelBroadcaster
	notifier    ChannelNotifier
	maxLength   int
	metrics     *metrics.Metrics

	wg sync.WaitGroup
}

func NewMessageService(
	db database.MessageRepository,
	channels *ChannelService,
	conns Connections,
	broadcaster ChannelBroadcaster,
	notifier ChannelNotifier,
	maxLength int,
	m *metrics.Metrics,
) *MessageService {
	return &MessageService{
		db:          db,
		channels:    channels,
		conns:       conns,
		broadcaster: broadcaster,
		notifier:    notifier,
		maxLength:   maxLength,
		metrics:     m,
	}
}

// Publish stores content as a new message in channelID and broadcasts it.
// Nothing is broadcast unless the message was persisted.
func (s *MessageService) Publish(ctx context.Context, connID, channelID, content string) (*models.Message, error) {
	msg, channel, err := s.publish(ctx, connID, channelID, content)
	s.metrics.MessagePublished(err)
	if err != nil {
		return nil, err
	}

	s.broadcaster.BroadcastToChannel(channelID, models.Event{Type: models.EventMessage, Data: msg})

	if s.notifier != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.notifier.NotifyChannelEvent(context.WithoutCancel(ctx), channel, msg, msg.SenderID); err != nil {
				logger.Warn("Notification fan-out for message %s incomplete: %v", msg.ID, err)
			}
		}()
	}
	return msg, nil
}

func (s *MessageService) publish(ctx context.Context, connID, channelID, content string) (*models.Message, *models.Channel, error) {
	senderID, err := s.conns.UserOf(connID)
	if err != nil {
		return nil, nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, models.ErrEmptyMessage
	}
	if s.maxLength > 0 && utf8.RuneCountInString(content) > s.maxLength {
		return nil, nil, models.ErrMessageTooLong
	}

	channel, err := s.channels.RequireMember(ctx, channelID, senderID)
	if err != nil {
		return nil, nil, err
	}
	active, err := s.channels.IsActive(ctx, channelID)
	if err != nil {
		return nil, nil, err
	}
	if !active {
		return nil, nil, models.ErrNotFound
	}

	msg, err := s.db.SaveMessage(ctx, channelID, senderID, content)
	if err != nil {
		s.metrics.StorageError("save_message")
		return nil, nil, fmt.Errorf("%w: save message: %w", models.ErrPersistence, err)
	}
	return msg, channel, nil
}

// Wait blocks until background notification fan-outs have finished.
func (s *MessageService) Wait() {
	s.wg.Wait()
}
