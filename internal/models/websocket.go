package models

import "encoding/json"

type MessageType string

// Inbound event types.
const (
	EventJoinChannel  MessageType = "join_channel"
	EventLeaveChannel MessageType = "leave_channel"
	EventUpdateStatus MessageType = "update_status"
	EventJoinUser     MessageType = "join_user"
)

// Event types used in both directions.
const (
	EventMessage     MessageType = "message"
	EventAddReaction MessageType = "add_reaction"
)

// Outbound event types.
const (
	EventChannelParticipants MessageType = "channel_participants"
	EventStatusUpdated       MessageType = "statusUpdated"
	EventNotification        MessageType = "notification"
	EventError               MessageType = "error"
)

// Envelope is the inbound frame. Data is decoded per Type.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Event is the outbound frame.
type Event struct {
	Type MessageType `json:"type"`
	Data interface{} `json:"data"`
}

type JoinChannelRequest struct {
	ChannelID string `json:"channel_id"`
}

type SendMessageRequest struct {
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

type AddReactionRequest struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	Emoji     string `json:"emoji"`
}

type UpdateStatusRequest struct {
	Status PresenceStatus `json:"status"`
}

type JoinUserRequest struct {
	UserID string `json:"user_id"`
}

type ChannelParticipants struct {
	ChannelID    string        `json:"channel_id"`
	Participants []Participant `json:"participants"`
}

type ReactionsUpdate struct {
	MessageID string      `json:"message_id"`
	Version   uint64      `json:"version"`
	Reactions ReactionMap `json:"reactions_map"`
}

type ErrorPayload struct {
	Code        string      `json:"code"`
	Message     string      `json:"message"`
	RequestType MessageType `json:"request_type,omitempty"`
}
