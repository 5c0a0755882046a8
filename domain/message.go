// Package domain contains core concepts of the chat system.
// This file defines Message records exchanged between two users.
// Messages are append-only; Read is the only field that ever changes.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is the canonical stored record of a direct message.
type Message struct {
	ID         uuid.UUID
	SenderID   UserID
	ReceiverID UserID
	Text       string
	ImageRef   string
	Read       bool
	CreatedAt  time.Time
}

// HasContent reports whether at least one of Text or ImageRef is present.
func (m Message) HasContent() bool {
	return m.Text != "" || m.ImageRef != ""
}

// Counterpart returns the other participant of the message as seen by viewer.
func (m Message) Counterpart(viewer UserID) UserID {
	if m.SenderID == viewer {
		return m.ReceiverID
	}
	return m.SenderID
}

// Involves reports whether the message belongs to the conversation between a and b.
func (m Message) Involves(a, b UserID) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}
