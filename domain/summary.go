package domain

import "time"

// LastMessage is the preview of the most recent message of a conversation.
type LastMessage struct {
	Text     string
	ImageRef string
	SenderID UserID
}

// ConversationSummary is derived per viewer and never persisted.
// UnreadCount only counts messages flowing from the counterpart to the viewer,
// so both sides of the same pair get different summaries.
type ConversationSummary struct {
	Counterpart     UserProfile
	LastMessage     *LastMessage
	LastMessageTime *time.Time
	UnreadCount     uint
}

func NewConversationSummary(counterpart UserProfile, last *Message, unread uint) ConversationSummary {
	summary := ConversationSummary{Counterpart: counterpart, UnreadCount: unread}
	if last != nil {
		at := last.CreatedAt
		summary.LastMessage = &LastMessage{
			Text:     last.Text,
			ImageRef: last.ImageRef,
			SenderID: last.SenderID,
		}
		summary.LastMessageTime = &at
	}
	return summary
}
