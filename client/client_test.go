package client

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	httpserver "chat-relay/infrastructure/http/server"
	"chat-relay/observability"
	"chat-relay/projection"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
	"chat-relay/wire"
	"context"
	"log/slog"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const password = "ComplexPass123!"

func startServer(t *testing.T) string {
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	metrics := observability.NewMetrics()
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	users := repositories.NewUserRepository(db)
	messages := repositories.NewMessageRepository(db, log)
	registry := runtime.NewRegistry(log, metrics)
	coordinator := runtime.NewCoordinator(log, messages, projection.NewSummaryBuilder(messages, users, 4),
		nil, users, registry, metrics)
	chat := services.NewChatService(coordinator, runtime.NewTypingRelay(log, registry, metrics), registry)

	srv := httpserver.NewServer(log, chat, services.NewAuthService(log, users, issuer), issuer, metrics, httpserver.Options{
		HistoryMarksRead:     true,
		ConnectionBufferSize: 32,
		WriteTimeout:         time.Second,
		PongTimeout:          5 * time.Second,
		MaxFrameBytes:        4096,
		InboundFrameRate:     50,
		InboundFrameBurst:    10,
	})
	server := httptest.NewServer(srv.Router())
	t.Cleanup(server.Close)
	return server.URL
}

func register(t *testing.T, baseURL, name string) wire.AuthResponse {
	out, err := NewAPI(baseURL, nil).Register(context.Background(), name, name+"@example.com", password)
	require.NoError(t, err)
	return out
}

// gatedDialer records every connection it opens and can hold back new ones.
type gatedDialer struct {
	mu    sync.Mutex
	conns []net.Conn
	gate  chan struct{}
}

func (d *gatedDialer) dialer() *websocket.Dialer {
	return &websocket.Dialer{
		HandshakeTimeout: time.Second,
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			d.mu.Lock()
			gate := d.gate
			d.mu.Unlock()
			if gate != nil {
				select {
				case <-gate:
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			conn, err := (&net.Dialer{}).DialContext(ctx, network, addr)
			if err == nil {
				d.mu.Lock()
				d.conns = append(d.conns, conn)
				d.mu.Unlock()
			}
			return conn, err
		},
	}
}

func (d *gatedDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func startClient(t *testing.T, baseURL, name string, dialer *websocket.Dialer) *Client {
	c := New(logs.GetLoggerFromLevel(slog.LevelDebug), Options{
		BaseURL:       baseURL,
		Credentials:   Credentials{Email: name + "@example.com", Password: password},
		TypingTimeout: 150 * time.Millisecond,
		NewBackOff:    func() backoff.BackOff { return backoff.NewConstantBackOff(20 * time.Millisecond) },
		Dialer:        dialer,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	require.Eventually(t, func() bool { return c.State() == Connected && c.Self().ID != "" },
		3*time.Second, 10*time.Millisecond)
	return c
}

// rawSession opens a bare live session to observe exactly what the server pushes.
func rawSession(t *testing.T, baseURL, token string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(baseURL, "http")+"/ws?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	next(t, conn, event.OnlineUsersName)
	return conn
}

func next(t *testing.T, conn *websocket.Conn, name event.Name) event.DomainEvent {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", name)
		e, err := wire.DecodeEvent(data)
		require.NoError(t, err)
		if e.EventName() == name {
			return e
		}
	}
}

func TestClient_Connects_And_Loads_Summaries(t *testing.T) {
	req := require.New(t)
	baseURL := startServer(t)
	register(t, baseURL, "alice")
	bob := register(t, baseURL, "bob")

	alice := startClient(t, baseURL, "alice", nil)

	req.Eventually(func() bool {
		summaries := alice.Summaries()
		return len(summaries) == 1 && summaries[0].Counterpart.ID == domain.UserID(bob.User.ID)
	}, time.Second, 10*time.Millisecond)
	req.Eventually(func() bool { return len(alice.OnlineUsers()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestClient_Wrong_Credentials_Stop_Run(t *testing.T) {
	req := require.New(t)
	baseURL := startServer(t)
	register(t, baseURL, "alice")
	c := New(logs.GetLoggerFromLevel(slog.LevelDebug), Options{
		BaseURL:     baseURL,
		Credentials: Credentials{Email: "alice@example.com", Password: "WrongPass123!"},
		NewBackOff:  func() backoff.BackOff { return backoff.NewConstantBackOff(10 * time.Millisecond) },
	})

	err := c.Run(context.Background())

	req.ErrorIs(err, errors.ErrNotAuthenticated)
	req.Equal(Disconnected, c.State())
}

func TestClient_Open_Conversation_Marks_Read_And_Live_Messages_Too(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	baseURL := startServer(t)
	register(t, baseURL, "alice")
	bob := register(t, baseURL, "bob")
	bobAPI := NewAPI(baseURL, nil)
	bobWS := rawSession(t, baseURL, bob.Token)

	alice := startClient(t, baseURL, "alice", nil)
	aliceID := alice.Self().ID
	_, err := bobAPI.Send(ctx, bob.Token, aliceID, wire.SendMessageRequest{Text: "are you there?"})
	req.NoError(err)
	req.Eventually(func() bool {
		s := alice.Summaries()
		return len(s) == 1 && s[0].UnreadCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	// When alice opens the conversation
	req.NoError(alice.OpenConversation(ctx, domain.UserID(bob.User.ID)))

	// Then the history is loaded and bob gets a receipt
	messages := alice.Messages()
	req.Len(messages, 1)
	req.True(messages[0].Read)
	req.Equal(event.MessagesRead{ViewerID: aliceID}, next(t, bobWS, event.MessagesReadName))

	// When bob writes while the conversation is open, it is appended and read right away
	_, err = bobAPI.Send(ctx, bob.Token, aliceID, wire.SendMessageRequest{Text: "hello"})
	req.NoError(err)
	req.Eventually(func() bool { return len(alice.Messages()) == 2 }, 2*time.Second, 10*time.Millisecond)
	req.Equal(event.MessagesRead{ViewerID: aliceID}, next(t, bobWS, event.MessagesReadName))

	// And alice's own message flips to read once bob reads it
	sent, err := alice.Send(ctx, "yes!", nil)
	req.NoError(err)
	_, err = bobAPI.MarkRead(ctx, bob.Token, aliceID)
	req.NoError(err)
	req.Eventually(func() bool {
		for _, m := range alice.Messages() {
			if m.ID == sent.ID {
				return m.Read
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClient_Typing_Only_On_Transitions(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	baseURL := startServer(t)
	register(t, baseURL, "alice")
	bob := register(t, baseURL, "bob")
	bobWS := rawSession(t, baseURL, bob.Token)
	alice := startClient(t, baseURL, "alice", nil)
	req.NoError(alice.OpenConversation(ctx, domain.UserID(bob.User.ID)))

	for _, draft := range []string{"h", "he", "hel", "", ""} {
		req.NoError(alice.SetDraft(ctx, draft))
	}
	// A fresh transition proves the repeated drafts emitted nothing
	req.NoError(alice.SetDraft(ctx, "x"))

	var got []bool
	for i := 0; i < 3; i++ {
		typing := next(t, bobWS, event.TypingStateChangedName).(event.TypingStateChanged)
		req.Equal(alice.Self().ID, typing.Signal.SenderID)
		got = append(got, typing.Signal.IsTyping)
	}
	req.Equal([]bool{true, false, true}, got)
}

func TestClient_Peer_Typing_Expires(t *testing.T) {
	req := require.New(t)
	baseURL := startServer(t)
	register(t, baseURL, "alice")
	bob := register(t, baseURL, "bob")
	alice := startClient(t, baseURL, "alice", nil)
	bobWS := rawSession(t, baseURL, bob.Token)

	frame, err := wire.EncodeTyping(alice.Self().ID, true)
	req.NoError(err)
	req.NoError(bobWS.WriteMessage(websocket.TextMessage, frame))

	bobID := domain.UserID(bob.User.ID)
	req.Eventually(func() bool { return alice.IsPeerTyping(bobID) }, 2*time.Second, 5*time.Millisecond)
	// No stop signal ever comes: the indicator times out on its own
	req.Eventually(func() bool { return !alice.IsPeerTyping(bobID) }, 2*time.Second, 10*time.Millisecond)
}

func TestClient_Reconnects_And_Heals_Missed_Messages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	baseURL := startServer(t)
	register(t, baseURL, "alice")
	bob := register(t, baseURL, "bob")
	dialer := &gatedDialer{}
	alice := startClient(t, baseURL, "alice", dialer.dialer())
	req.NoError(alice.OpenConversation(ctx, domain.UserID(bob.User.ID)))

	// Given the transport drops and reconnection is held back
	dialer.mu.Lock()
	dialer.gate = make(chan struct{})
	first := dialer.conns[0]
	dialer.mu.Unlock()
	_ = first.Close()
	req.Eventually(func() bool { return alice.State() == Disconnected }, 2*time.Second, 5*time.Millisecond)

	// When bob writes while alice is offline
	_, err := NewAPI(baseURL, nil).Send(ctx, bob.Token, alice.Self().ID, wire.SendMessageRequest{Text: "missed"})
	req.NoError(err)

	// And the network comes back
	dialer.mu.Lock()
	close(dialer.gate)
	dialer.gate = nil
	dialer.mu.Unlock()

	// Then the refetch brings the message and marks it read
	req.Eventually(func() bool {
		messages := alice.Messages()
		return alice.State() == Connected && len(messages) == 1 && messages[0].Read
	}, 3*time.Second, 10*time.Millisecond)
	req.GreaterOrEqual(dialer.dials(), 2)
}

func TestClient_Apply_Replaces_Summaries_Wholesale(t *testing.T) {
	req := require.New(t)
	c := New(logs.GetLoggerFromLevel(slog.LevelDebug), Options{BaseURL: "http://unused"})
	c.summaries = []domain.ConversationSummary{{Counterpart: domain.UserProfile{ID: "old"}}}
	fresh := []domain.ConversationSummary{
		{Counterpart: domain.UserProfile{ID: "bob"}, UnreadCount: 2},
		{Counterpart: domain.UserProfile{ID: "clara"}},
	}

	c.apply(context.Background(), event.UpdatedUsers{Summaries: fresh})

	req.Equal(fresh, c.Summaries())
	req.Equal(event.UpdatedUsers{Summaries: fresh}, <-c.Updates())
}

func TestClient_Apply_Ignores_Other_Conversations(t *testing.T) {
	req := require.New(t)
	c := New(logs.GetLoggerFromLevel(slog.LevelDebug), Options{BaseURL: "http://unused"})
	c.self = domain.UserProfile{ID: "alice"}
	c.open = projection.NewTimeline("alice", "bob")

	// A message from clara does not land in the conversation with bob
	c.apply(context.Background(), event.NewMessage{Message: domain.Message{
		ID: uuid.New(), SenderID: "clara", ReceiverID: "alice", Text: "psst", CreatedAt: time.Now(),
	}})

	req.Empty(c.Messages())
}

func TestAPIError_Unwraps_To_Sentinel(t *testing.T) {
	req := require.New(t)
	cases := map[errors.Code]error{
		errors.CodeValidation:       errors.ErrValidation,
		errors.CodeNotAuthenticated: errors.ErrNotAuthenticated,
		errors.CodeNotFound:         errors.ErrUserNotFound,
		errors.CodeStoreUnavailable: errors.ErrStoreUnavailable,
	}
	for code, sentinel := range cases {
		var err error = &APIError{Status: 400, Code: code}
		req.ErrorIs(err, sentinel, code)
	}
	req.Nil((&APIError{Status: 500, Code: errors.CodeInternal}).Unwrap())
}

func TestClient_Reopening_Keeps_Messages_Pushed_During_The_Fetch(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	baseURL := startServer(t)
	register(t, baseURL, "alice")
	bob := register(t, baseURL, "bob")
	alice := startClient(t, baseURL, "alice", nil)
	bobID := domain.UserID(bob.User.ID)
	_, err := NewAPI(baseURL, nil).Send(ctx, bob.Token, alice.Self().ID, wire.SendMessageRequest{Text: "stored"})
	req.NoError(err)
	req.NoError(alice.OpenConversation(ctx, bobID))

	// Given a message that reached the local log but not the history answer yet
	pushed := domain.Message{ID: uuid.New(), SenderID: bobID, ReceiverID: alice.Self().ID, Text: "in flight", CreatedAt: time.Now().Add(time.Hour)}
	alice.mu.RLock()
	timeline := alice.open
	alice.mu.RUnlock()
	req.True(timeline.Add(pushed))

	// When the conversation is fetched again
	req.NoError(alice.OpenConversation(ctx, bobID))

	// Then the fetched history is merged in, not swapped in
	messages := alice.Messages()
	req.Len(messages, 2)
	req.Equal("stored", messages[0].Text)
	req.True(messages[0].Read)
	req.Equal(pushed.ID, messages[1].ID)
}

func TestClient_Logout_Ends_The_Live_Session(t *testing.T) {
	req := require.New(t)
	baseURL := startServer(t)
	register(t, baseURL, "alice")
	bob := register(t, baseURL, "bob")
	bobWS := rawSession(t, baseURL, bob.Token)
	alice := startClient(t, baseURL, "alice", nil)
	aliceID := alice.Self().ID
	req.Contains(next(t, bobWS, event.OnlineUsersName).(event.OnlineUsers).UserIDs, aliceID)

	// When alice logs out
	alice.Logout()

	// Then bob sees her go offline and the client stays down
	req.NotContains(next(t, bobWS, event.OnlineUsersName).(event.OnlineUsers).UserIDs, aliceID)
	req.Eventually(func() bool { return alice.State() == Disconnected }, 2*time.Second, 10*time.Millisecond)
	req.Empty(alice.Self().ID)
	req.Never(func() bool { return alice.State() == Connected }, 200*time.Millisecond, 20*time.Millisecond)
}
