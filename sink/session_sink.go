package sink

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"sync"
)

// SessionSink is the outbound queue of one live session.
// The registry and the coordinator push into it, the transport writer drains it.
type SessionSink struct {
	Session domain.LiveSession
	events  chan event.DomainEvent
	done    chan struct{}
	once    sync.Once
}

func NewSessionSink(session domain.LiveSession, bufferSize int) *SessionSink {
	return &SessionSink{
		Session: session,
		events:  make(chan event.DomainEvent, bufferSize),
		done:    make(chan struct{}),
	}
}

// Consume never blocks. A closed session answers ErrSessionClosed; a full
// buffer answers ErrSlowConsumer and closes the session, since a client that
// stopped reading will never catch up on a consistent state anyway.
func (s *SessionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case <-s.done:
		return errors.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case s.events <- e:
		return nil
	default:
		s.Close()
		return errors.ErrSlowConsumer
	}
}

// Events is drained by the transport writer.
func (s *SessionSink) Events() <-chan event.DomainEvent { return s.events }

// Done is closed once the session is closed.
func (s *SessionSink) Done() <-chan struct{} { return s.done }

// Close is idempotent. Events still buffered are abandoned.
func (s *SessionSink) Close() {
	s.once.Do(func() { close(s.done) })
}
