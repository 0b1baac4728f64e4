package models

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusBusy    PresenceStatus = "busy"
	StatusOffline PresenceStatus = "offline"
)

type StatusUpdate struct {
	UserID string         `json:"user_id"`
	Status PresenceStatus `json:"status"`
}
