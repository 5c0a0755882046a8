package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/runtime"
	"context"
)

// IChatService is what the transports see of the chat core.
type IChatService interface {
	SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	GetMessages(ctx context.Context, q domain.HistoryQuery) ([]domain.Message, error)
	MarkRead(ctx context.Context, cmd domain.MarkReadCommand) (int, error)
	Summaries(ctx context.Context, viewer domain.UserID) ([]domain.ConversationSummary, error)
	SetTyping(ctx context.Context, signal domain.TypingSignal) error
	Connect(session domain.LiveSession, sink contract.EventSink)
	Disconnect(session domain.LiveSession)
}

type ChatService struct {
	coordinator *runtime.Coordinator
	typing      *runtime.TypingRelay
	registry    contract.IRegistry
}

func NewChatService(coordinator *runtime.Coordinator, typing *runtime.TypingRelay, registry contract.IRegistry) *ChatService {
	return &ChatService{coordinator: coordinator, typing: typing, registry: registry}
}

func (s *ChatService) SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	return s.coordinator.Send(ctx, cmd)
}

func (s *ChatService) GetMessages(ctx context.Context, q domain.HistoryQuery) ([]domain.Message, error) {
	return s.coordinator.History(ctx, q)
}

func (s *ChatService) MarkRead(ctx context.Context, cmd domain.MarkReadCommand) (int, error) {
	return s.coordinator.MarkRead(ctx, cmd)
}

func (s *ChatService) Summaries(ctx context.Context, viewer domain.UserID) ([]domain.ConversationSummary, error) {
	return s.coordinator.Summaries(ctx, viewer)
}

func (s *ChatService) SetTyping(ctx context.Context, signal domain.TypingSignal) error {
	_, err := s.typing.SetTyping(ctx, signal)
	return err
}

// Connect registers a live session. Its sink starts receiving pushes right away.
func (s *ChatService) Connect(session domain.LiveSession, sink contract.EventSink) {
	s.registry.Register(session.UserID, session.SessionID, sink)
}

func (s *ChatService) Disconnect(session domain.LiveSession) {
	s.registry.Unregister(session.UserID, session.SessionID)
}
