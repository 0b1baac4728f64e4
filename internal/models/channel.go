package models

import "time"

type Channel struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	CreatorID       string    `json:"creator_id"`
	Active          bool      `json:"active"`
	IsDirectMessage bool      `json:"is_direct_message"`
	Members         []string  `json:"members"`
	CreatedAt       time.Time `json:"created_at"`
}

// HasMember reports whether userID is in the durable membership list.
func (c *Channel) HasMember(userID string) bool {
	for _, id := range c.Members {
		if id == userID {
			return true
		}
	}
	return false
}

type Message struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type Participant struct {
	ID       string         `json:"id"`
	Username string         `json:"username"`
	Status   PresenceStatus `json:"status"`
}
