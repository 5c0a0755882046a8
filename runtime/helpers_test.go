package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/projection"
	"chat-relay/repositories"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// recordingSink keeps every event it is given.
type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) named(name event.Name) []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.DomainEvent
	for _, e := range s.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

func (s *recordingSink) lastSummaries(t *testing.T) []domain.ConversationSummary {
	updates := s.named(event.UpdatedUsersName)
	require.NotEmpty(t, updates, "no updatedUsers received")
	return updates[len(updates)-1].(event.UpdatedUsers).Summaries
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// closedSink behaves like a session whose socket already went away.
type closedSink struct{}

func (closedSink) Consume(context.Context, event.DomainEvent) error {
	return errors.ErrSessionClosed
}

type fixture struct {
	log         *slog.Logger
	metrics     *observability.Metrics
	registry    *Registry
	messages    *repositories.MessageRepository
	users       *repositories.UserRepository
	coordinator *Coordinator
	typing      *TypingRelay
}

func newFixture(t *testing.T) *fixture {
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	metrics := observability.NewMetrics()
	registry := NewRegistry(log, metrics)
	messages := repositories.NewMessageRepository(db, log)
	users := repositories.NewUserRepository(db)
	summaries := projection.NewSummaryBuilder(messages, users, 4)
	return &fixture{
		log:         log,
		metrics:     metrics,
		registry:    registry,
		messages:    messages,
		users:       users,
		coordinator: NewCoordinator(log, messages, summaries, nil, users, registry, metrics),
		typing:      NewTypingRelay(log, registry, metrics),
	}
}

func (f *fixture) user(t *testing.T, name string) domain.UserID {
	u, err := f.users.CreateUser(name, name+"@example.com", "not-a-real-hash")
	require.NoError(t, err)
	return domain.UserID(u.ID)
}

func (f *fixture) connect(userID domain.UserID) *recordingSink {
	s := &recordingSink{}
	f.registry.Register(userID, domain.NewSessionID(), s)
	return s
}

func summaryOf(t *testing.T, summaries []domain.ConversationSummary, counterpart domain.UserID) domain.ConversationSummary {
	for _, s := range summaries {
		if s.Counterpart.ID == counterpart {
			return s
		}
	}
	t.Fatalf("no summary for %s", counterpart)
	return domain.ConversationSummary{}
}
