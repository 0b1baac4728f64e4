package models

// ReactionEntry is the aggregate for one emoji on one message.
// Count always equals len(Users).
type ReactionEntry struct {
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// ReactionMap is keyed by the display form of the emoji token.
type ReactionMap map[string]ReactionEntry

func (m ReactionMap) Clone() ReactionMap {
	out := make(ReactionMap, len(m))
	for emoji, entry := range m {
		users := make([]string, len(entry.Users))
		copy(users, entry.Users)
		out[emoji] = ReactionEntry{Count: entry.Count, Users: users}
	}
	return out
}

type ReactionDelta struct {
	MessageID string      `json:"message_id"`
	ChannelID string      `json:"channel_id"`
	Emoji     string      `json:"emoji"`
	UserID    string      `json:"user_id"`
	Added     bool        `json:"added"`
	Count     int         `json:"count"`
	Version   uint64      `json:"version"`
	Reactions ReactionMap `json:"reactions"`
}

type ReactionDetail struct {
	Count     int      `json:"count"`
	Usernames []string `json:"usernames"`
}
