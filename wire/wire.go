// Package wire holds the JSON shapes shared by the HTTP API, the live
// session protocol and the Go client.
package wire

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// TypingFrameType is the only frame a client sends over its live session.
const TypingFrameType = "typing"

// Envelope wraps every frame of the live session, in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	ImageRef   string    `json:"imageRef,omitempty"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"createdAt"`
}

type User struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	ProfilePic string    `json:"profilePic,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type LastMessage struct {
	Text     string `json:"text,omitempty"`
	ImageRef string `json:"imageRef,omitempty"`
	SenderID string `json:"senderId"`
}

// Summary flattens the counterpart profile next to the derived fields.
type Summary struct {
	User
	LastMessage     *LastMessage `json:"lastMessage"`
	LastMessageTime *time.Time   `json:"lastMessageTime"`
	UnreadCount     uint         `json:"unreadCount"`
}

type MessagesRead struct {
	ViewerID string `json:"viewerId"`
}

type TypingState struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	IsTyping   bool   `json:"isTyping"`
}

// TypingFrame is sent by clients. The sender is never taken from the frame.
type TypingFrame struct {
	ReceiverID string `json:"receiverId"`
	IsTyping   bool   `json:"isTyping"`
}

// SendMessageRequest carries either a fresh image (base64 or data URL) in
// Image, or an already uploaded reference in ImageRef.
type SendMessageRequest struct {
	Text     string `json:"text,omitempty"`
	Image    string `json:"image,omitempty"`
	ImageRef string `json:"imageRef,omitempty"`
}

type MarkReadResponse struct {
	MarkedCount int `json:"markedCount"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func FromMessage(m domain.Message) Message {
	return Message{
		ID:         m.ID.String(),
		SenderID:   string(m.SenderID),
		ReceiverID: string(m.ReceiverID),
		Text:       m.Text,
		ImageRef:   m.ImageRef,
		Read:       m.Read,
		CreatedAt:  m.CreatedAt,
	}
}

func FromMessages(messages []domain.Message) []Message {
	return lo.Map(messages, func(m domain.Message, _ int) Message { return FromMessage(m) })
}

func (m Message) ToDomain() (domain.Message, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("message id %q: %w", m.ID, err)
	}
	return domain.Message{
		ID:         id,
		SenderID:   domain.UserID(m.SenderID),
		ReceiverID: domain.UserID(m.ReceiverID),
		Text:       m.Text,
		ImageRef:   m.ImageRef,
		Read:       m.Read,
		CreatedAt:  m.CreatedAt,
	}, nil
}

func FromProfile(p domain.UserProfile) User {
	return User{
		ID:         string(p.ID),
		Name:       p.Name,
		Email:      p.Email,
		ProfilePic: p.ProfilePic,
		CreatedAt:  p.CreatedAt,
	}
}

func (u User) ToDomain() domain.UserProfile {
	return domain.UserProfile{
		ID:         domain.UserID(u.ID),
		Name:       u.Name,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		CreatedAt:  u.CreatedAt,
	}
}

func FromSummaries(summaries []domain.ConversationSummary) []Summary {
	return lo.Map(summaries, func(s domain.ConversationSummary, _ int) Summary {
		out := Summary{
			User:            FromProfile(s.Counterpart),
			LastMessageTime: s.LastMessageTime,
			UnreadCount:     s.UnreadCount,
		}
		if s.LastMessage != nil {
			out.LastMessage = &LastMessage{
				Text:     s.LastMessage.Text,
				ImageRef: s.LastMessage.ImageRef,
				SenderID: string(s.LastMessage.SenderID),
			}
		}
		return out
	})
}

func ToSummaries(summaries []Summary) []domain.ConversationSummary {
	return lo.Map(summaries, func(s Summary, _ int) domain.ConversationSummary {
		out := domain.ConversationSummary{
			Counterpart:     s.User.ToDomain(),
			LastMessageTime: s.LastMessageTime,
			UnreadCount:     s.UnreadCount,
		}
		if s.LastMessage != nil {
			out.LastMessage = &domain.LastMessage{
				Text:     s.LastMessage.Text,
				ImageRef: s.LastMessage.ImageRef,
				SenderID: domain.UserID(s.LastMessage.SenderID),
			}
		}
		return out
	})
}

// EncodeEvent renders a push event as an envelope.
func EncodeEvent(e event.DomainEvent) ([]byte, error) {
	var payload any
	switch evt := e.(type) {
	case event.NewMessage:
		payload = FromMessage(evt.Message)
	case event.UpdatedUsers:
		payload = FromSummaries(evt.Summaries)
	case event.MessagesRead:
		payload = MessagesRead{ViewerID: string(evt.ViewerID)}
	case event.OnlineUsers:
		payload = lo.Map(evt.UserIDs, func(id domain.UserID, _ int) string { return string(id) })
	case event.TypingStateChanged:
		payload = TypingState{
			SenderID:   string(evt.Signal.SenderID),
			ReceiverID: string(evt.Signal.ReceiverID),
			IsTyping:   evt.Signal.IsTyping,
		}
	default:
		return nil, fmt.Errorf("unknown event %T", e)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: string(e.EventName()), Payload: raw})
}

// DecodeEvent is the inverse of EncodeEvent. UpdatedUsers comes back without
// its viewer since the receiving session already knows who it is.
func DecodeEvent(data []byte) (event.DomainEvent, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	switch event.Name(envelope.Type) {
	case event.NewMessageName:
		var m Message
		if err := json.Unmarshal(envelope.Payload, &m); err != nil {
			return nil, err
		}
		message, err := m.ToDomain()
		if err != nil {
			return nil, err
		}
		return event.NewMessage{Message: message}, nil
	case event.UpdatedUsersName:
		var summaries []Summary
		if err := json.Unmarshal(envelope.Payload, &summaries); err != nil {
			return nil, err
		}
		return event.UpdatedUsers{Summaries: ToSummaries(summaries)}, nil
	case event.MessagesReadName:
		var read MessagesRead
		if err := json.Unmarshal(envelope.Payload, &read); err != nil {
			return nil, err
		}
		return event.MessagesRead{ViewerID: domain.UserID(read.ViewerID)}, nil
	case event.OnlineUsersName:
		var ids []string
		if err := json.Unmarshal(envelope.Payload, &ids); err != nil {
			return nil, err
		}
		return event.OnlineUsers{UserIDs: lo.Map(ids, func(id string, _ int) domain.UserID { return domain.UserID(id) })}, nil
	case event.TypingStateChangedName:
		var typing TypingState
		if err := json.Unmarshal(envelope.Payload, &typing); err != nil {
			return nil, err
		}
		return event.TypingStateChanged{Signal: domain.TypingSignal{
			SenderID:   domain.UserID(typing.SenderID),
			ReceiverID: domain.UserID(typing.ReceiverID),
			IsTyping:   typing.IsTyping,
		}}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", envelope.Type)
	}
}

// EncodeTyping builds the client frame announcing a typing transition.
func EncodeTyping(receiverID domain.UserID, isTyping bool) ([]byte, error) {
	raw, err := json.Marshal(TypingFrame{ReceiverID: string(receiverID), IsTyping: isTyping})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: TypingFrameType, Payload: raw})
}

// DecodeImage accepts plain base64 or a data URL and returns the raw bytes.
func DecodeImage(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 || !strings.Contains(s[:comma], ";base64") {
			return nil, fmt.Errorf("malformed data URL")
		}
		s = s[comma+1:]
	}
	return base64.StdEncoding.DecodeString(s)
}
