package model

import "time"

type EventType string

const (
	EventMessage EventType = "message"
	EventError   EventType = "error"
)

// ChatEvent is the frame fanned out to every connection in a group. For
// message events all fields are set; error events carry only Type, GroupID
// and Detail and are delivered to a single connection, never broadcast.
type ChatEvent struct {
	Type      EventType `json:"type"`
	ID        int64     `json:"id,omitempty"`
	GroupID   int64     `json:"group_id"`
	Sender    Sender    `json:"sender,omitzero"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	Detail    string    `json:"detail,omitempty"`
}

// MessageEvent builds the canonical broadcast frame for a persisted message.
func MessageEvent(msg Message, sender Sender) ChatEvent {
	return ChatEvent{
		Type:      EventMessage,
		ID:        msg.ID,
		GroupID:   msg.GroupID,
		Sender:    sender,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
}

// ErrorEvent builds the frame reported back to a sender when its message
// could not be persisted.
func ErrorEvent(groupID int64, detail string) ChatEvent {
	return ChatEvent{Type: EventError, GroupID: groupID, Detail: detail}
}
