// Package realtime distributes moderation and announcement events to
// connected clients. A per-process registry tracks every open push
// connection; a database change-feed listener targets single users, and a
// Redis-backed broadcaster fans global events out across instances.
package realtime

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventConnected           EventType = "CONNECTED"
	EventHeartbeat           EventType = "HEARTBEAT"
	EventUserBanned          EventType = "USER_BANNED"
	EventUserUnbanned        EventType = "USER_UNBANNED"
	EventAnnouncementCreated EventType = "ANNOUNCEMENT_CREATED"
	EventAnnouncementRemoved EventType = "ANNOUNCEMENT_REMOVED"
)

// Event is one message on a client's push stream. Events are ephemeral:
// they are never persisted, and a client connecting after an event was
// published does not receive it.
type Event struct {
	Type      EventType       `json:"type"`
	UserID    string          `json:"userId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Encode renders the event as one newline-terminated JSON line, the framing
// used on the stream endpoint.
func (e Event) Encode() ([]byte, error) {
	line, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}

// knownBroadcastTypes are the event types accepted from the distributed
// broadcast channel. Anything else is treated as a decode error.
var knownBroadcastTypes = map[EventType]bool{
	EventAnnouncementCreated: true,
	EventAnnouncementRemoved: true,
}
