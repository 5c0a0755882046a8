package event

import (
	"chat-relay/domain"
)

// Name is the wire name of a push event. These names are a stable contract
// with clients.
type Name string

const (
	NewMessageName         Name = "newMessage"
	UpdatedUsersName       Name = "updatedUsers"
	MessagesReadName       Name = "messagesRead"
	OnlineUsersName        Name = "onlineUsers"
	TypingStateChangedName Name = "typingStateChanged"
)

type DomainEvent interface {
	EventName() Name
}

// NewMessage is pushed to the receiver's live sessions once the message is stored.
type NewMessage struct {
	Message domain.Message
}

func (NewMessage) EventName() Name { return NewMessageName }

// UpdatedUsers carries the complete summary list of one viewer.
type UpdatedUsers struct {
	ViewerID  domain.UserID
	Summaries []domain.ConversationSummary
}

func (UpdatedUsers) EventName() Name { return UpdatedUsersName }

// MessagesRead tells a sender that ViewerID has read their outgoing messages.
type MessagesRead struct {
	ViewerID domain.UserID
}

func (MessagesRead) EventName() Name { return MessagesReadName }

// OnlineUsers is the set of users holding at least one live session.
type OnlineUsers struct {
	UserIDs []domain.UserID
}

func (OnlineUsers) EventName() Name { return OnlineUsersName }

type TypingStateChanged struct {
	Signal domain.TypingSignal
}

func (TypingStateChanged) EventName() Name { return TypingStateChangedName }
