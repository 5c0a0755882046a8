package server

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/sink"
	"chat-relay/wire"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// serveWS upgrades the request and holds the live session until either side
// goes away. The session is registered for exactly as long as the
// connection lives.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already answered the client
		s.log.Debug("Websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	session := domain.NewLiveSession(userID)
	c := &liveConn{
		log:     s.log.With("user_id", userID, "session_id", session.SessionID),
		conn:    conn,
		sink:    sink.NewSessionSink(session, s.options.ConnectionBufferSize),
		session: session,
		options: s.options,
		limiter: rate.NewLimiter(rate.Limit(s.options.InboundFrameRate), s.options.InboundFrameBurst),
	}
	ctx := r.Context()

	s.chat.Connect(session, c.sink)
	defer s.chat.Disconnect(session)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(ctx)
	}()
	c.readPump(ctx, func(signal domain.TypingSignal) {
		if err := s.chat.SetTyping(ctx, signal); err != nil {
			c.log.Debug("Typing signal rejected", "error", err)
		}
	})

	// Reader is gone: stop the writer and wait for it before unregistering
	c.sink.Close()
	<-writerDone
	_ = conn.Close()
	c.log.Info("Live session closed")
}

type liveConn struct {
	log     *slog.Logger
	conn    *websocket.Conn
	sink    *sink.SessionSink
	session domain.LiveSession
	options Options
	limiter *rate.Limiter
}

// readPump is the only reader of the connection. Typing is the single frame
// a client may send; the sender is always the session's own user.
func (c *liveConn) readPump(ctx context.Context, onTyping func(domain.TypingSignal)) {
	c.conn.SetReadLimit(c.options.MaxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.options.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.options.PongTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Websocket read failed", "error", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		if !c.limiter.Allow() {
			c.log.Debug("Inbound frame dropped by rate limit")
			continue
		}

		var envelope wire.Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			c.log.Debug("Malformed frame ignored", "error", err)
			continue
		}
		if envelope.Type != wire.TypingFrameType {
			c.log.Debug("Unknown frame ignored", "type", envelope.Type)
			continue
		}
		var frame wire.TypingFrame
		if err := json.Unmarshal(envelope.Payload, &frame); err != nil {
			c.log.Debug("Malformed typing frame ignored", "error", err)
			continue
		}
		onTyping(domain.TypingSignal{
			SenderID:   c.session.UserID,
			ReceiverID: domain.UserID(frame.ReceiverID),
			IsTyping:   frame.IsTyping,
		})
	}
}

// writePump is the only writer of the connection: pushes, pings and the
// final close frame all go through it.
func (c *liveConn) writePump(ctx context.Context) {
	pingPeriod := c.options.PongTimeout * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		// Unblocks the reader when the writer is the one giving up
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.writeClose(websocket.CloseGoingAway, "server shutting down")
			return
		case <-c.sink.Done():
			c.writeClose(websocket.CloseNormalClosure, "session closed")
			return
		case e := <-c.sink.Events():
			data, err := wire.EncodeEvent(e)
			if err != nil {
				c.log.Error("Event encoding failed", "event", e.EventName(), "error", err)
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("Websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.options.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.log.Debug("Websocket ping failed", "error", err)
				return
			}
		}
	}
}

func (c *liveConn) writeClose(code int, reason string) {
	deadline := time.Now().Add(c.options.WriteTimeout)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}
