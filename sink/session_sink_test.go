package sink

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionSink_Consume(t *testing.T) {
	req := require.New(t)
	s := NewSessionSink(domain.LiveSession{UserID: "alice", SessionID: "s1"}, 2)

	req.NoError(s.Consume(context.Background(), event.MessagesRead{ViewerID: "bob"}))
	req.Equal(event.MessagesRead{ViewerID: "bob"}, <-s.Events())
}

func TestSessionSink_Full_Buffer_Closes_Session(t *testing.T) {
	req := require.New(t)
	s := NewSessionSink(domain.LiveSession{UserID: "alice", SessionID: "s1"}, 1)

	// Given a reader that never drains
	req.NoError(s.Consume(context.Background(), event.OnlineUsers{}))

	// When the buffer overflows
	err := s.Consume(context.Background(), event.OnlineUsers{})

	// Then the push is refused and the session is dead
	req.ErrorIs(err, errors.ErrSlowConsumer)
	select {
	case <-s.Done():
	default:
		req.Fail("session should be closed")
	}
	req.ErrorIs(s.Consume(context.Background(), event.OnlineUsers{}), errors.ErrSessionClosed)
}

func TestSessionSink_Close_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	s := NewSessionSink(domain.LiveSession{UserID: "alice", SessionID: "s1"}, 1)
	s.Close()
	s.Close()
	req.ErrorIs(s.Consume(context.Background(), event.OnlineUsers{}), errors.ErrSessionClosed)
}
