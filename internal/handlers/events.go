package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"chat-realtime/internal/models"
	"chat-realtime/internal/services"
	ws "chat-realtime/internal/websocket"
	"chat-realtime/pkg/logger"
)

var errUnknownEvent = errors.New("unknown event type")

// EventRouter dispatches inbound websocket events to the engine and services.
type EventRouter struct {
	engine    *ws.Engine
	messages  *services.MessageService
	reactions *services.ReactionService
}

func NewEventRouter(engine *ws.Engine, messages *services.MessageService, reactions *services.ReactionService) *EventRouter {
	return &EventRouter{
		engine:    engine,
		messages:  messages,
		reactions: reactions,
	}
}

func (r *EventRouter) HandleEvent(ctx context.Context, c *ws.Client, env models.Envelope) {
	err := r.dispatch(ctx, c, env)
	if err == nil {
		return
	}

	if errors.Is(err, errUnknownEvent) {
		c.Send(models.Event{
			Type: models.EventError,
			Data: models.ErrorPayload{Code: "unknown_event", Message: err.Error(), RequestType: env.Type},
		})
		return
	}
	if ws.IsValidationError(err) {
		logger.Debug("Rejected %s from connection %s: %v", env.Type, c.ID(), err)
	} else {
		logger.Warn("Error handling %s from connection %s: %v", env.Type, c.ID(), err)
	}
	c.SendError(env.Type, err)
}

func (r *EventRouter) dispatch(ctx context.Context, c *ws.Client, env models.Envelope) error {
	switch env.Type {
	case models.EventJoinUser:
		var req models.JoinUserRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		if req.UserID == "" && c.Session() != nil {
			req.UserID = c.Session().ID
		}
		return r.engine.BindUser(c.ID(), req.UserID)

	case models.EventJoinChannel:
		var req models.JoinChannelRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return r.engine.Join(ctx, c.ID(), req.ChannelID)

	case models.EventLeaveChannel:
		var req models.JoinChannelRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		r.engine.Leave(c.ID(), req.ChannelID)
		return nil

	case models.EventMessage:
		var req models.SendMessageRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		_, err := r.messages.Publish(ctx, c.ID(), req.ChannelID, req.Content)
		return err

	case models.EventAddReaction:
		var req models.AddReactionRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		userID, err := r.engine.UserOf(c.ID())
		if err != nil {
			return err
		}
		_, err = r.reactions.Toggle(ctx, req.MessageID, req.ChannelID, userID, req.Emoji)
		return err

	case models.EventUpdateStatus:
		var req models.UpdateStatusRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return r.engine.UpdateStatus(c.ID(), req.Status)

	default:
		return errUnknownEvent
	}
}

// decode treats a missing payload as an empty object.
func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return models.ErrInvalidPayload
	}
	return nil
}
