// Package client keeps a signed-in user's view of the chat in sync with the
// server: contact summaries, the open conversation, presence and typing.
// Missed pushes are never replayed; every reconnection refetches instead.
package client

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/projection"
	"chat-relay/wire"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

const defaultTypingTimeout = 3 * time.Second

type Credentials struct {
	Email    string
	Password string
}

type Options struct {
	BaseURL     string
	Credentials Credentials
	// TypingTimeout hides a peer's indicator when no new signal arrived in time.
	TypingTimeout time.Duration
	NewBackOff    func() backoff.BackOff
	Dialer        *websocket.Dialer
	HTTPClient    *http.Client
}

type Client struct {
	log     *slog.Logger
	api     *API
	options Options
	updates chan event.DomainEvent

	mu         sync.RWMutex
	state      State
	token      string
	self       domain.UserProfile
	summaries  []domain.ConversationSummary
	online     []domain.UserID
	open       *projection.Timeline
	peerTyping map[domain.UserID]time.Time
	draftLen   int
	now        func() time.Time

	cancelRun context.CancelFunc

	writeMu sync.Mutex
	conn    *websocket.Conn
}

func New(log *slog.Logger, options Options) *Client {
	if options.TypingTimeout <= 0 {
		options.TypingTimeout = defaultTypingTimeout
	}
	if options.NewBackOff == nil {
		options.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 0
			return b
		}
	}
	if options.Dialer == nil {
		options.Dialer = websocket.DefaultDialer
	}
	return &Client{
		log:        log,
		api:        NewAPI(options.BaseURL, options.HTTPClient),
		options:    options,
		updates:    make(chan event.DomainEvent, 64),
		peerTyping: make(map[domain.UserID]time.Time),
		now:        time.Now,
	}
}

// Run keeps the client connected until ctx ends or Logout is called. Each attempt signs in
// again, opens a live session and refetches the state it may have missed.
// Wrong credentials stop the loop; anything else is retried with backoff.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	c.cancelRun = cancel
	c.mu.Unlock()

	b := backoff.WithContext(c.options.NewBackOff(), ctx)
	err := backoff.RetryNotify(func() error {
		err := c.connectOnce(ctx, b.Reset)
		if ctx.Err() != nil {
			return nil
		}
		if stderrors.Is(err, errors.ErrNotAuthenticated) || stderrors.Is(err, errors.ErrValidation) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		c.log.Warn("Connection lost, retrying", "error", err, "in", wait)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Client) connectOnce(ctx context.Context, onConnected func()) error {
	auth, err := c.api.Login(ctx, c.options.Credentials.Email, c.options.Credentials.Password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	c.mu.Lock()
	c.token = auth.Token
	c.self = auth.User.ToDomain()
	c.mu.Unlock()

	conn, _, err := c.options.Dialer.DialContext(ctx, c.wsURL(auth.Token), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	c.setConn(conn)
	defer c.setConn(nil)
	c.setState(Connected)
	defer c.setState(Disconnected)
	onConnected()
	c.log.Info("Connected", "user_id", auth.User.ID)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := c.refetch(ctx); err != nil {
		_ = conn.Close()
		return err
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			return fmt.Errorf("read: %w", err)
		}
		e, err := wire.DecodeEvent(data)
		if err != nil {
			c.log.Debug("Unknown push ignored", "error", err)
			continue
		}
		c.apply(ctx, e)
	}
}

// Logout closes the live session, which takes the user offline once no
// other session is left, and stops Run. Local state is dropped; a new Run
// signs in from scratch.
func (c *Client) Logout() {
	c.writeMu.Lock()
	if c.conn != nil {
		closing := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "logout")
		_ = c.conn.WriteControl(websocket.CloseMessage, closing, time.Now().Add(time.Second))
	}
	c.writeMu.Unlock()

	c.mu.Lock()
	cancel := c.cancelRun
	c.cancelRun = nil
	c.token = ""
	c.self = domain.UserProfile{}
	c.summaries = nil
	c.online = nil
	c.open = nil
	c.peerTyping = make(map[domain.UserID]time.Time)
	c.draftLen = 0
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.log.Info("Logged out")
}

// refetch replaces everything a missed push could have changed.
func (c *Client) refetch(ctx context.Context) error {
	token := c.currentToken()
	summaries, err := c.api.Summaries(ctx, token)
	if err != nil {
		return fmt.Errorf("summaries: %w", err)
	}
	c.mu.Lock()
	c.summaries = summaries
	open := c.open
	c.mu.Unlock()
	if open != nil {
		return c.OpenConversation(ctx, open.Counterpart)
	}
	return nil
}

// OpenConversation fetches the whole history with counterpart and merges it
// into the local log, then marks the counterpart's messages read if any are
// unread. The conversation is open before the fetch starts, so a message
// pushed meanwhile is kept and read like any live arrival.
func (c *Client) OpenConversation(ctx context.Context, counterpart domain.UserID) error {
	c.resetDraft(ctx)
	c.mu.Lock()
	timeline := c.open
	if timeline == nil || timeline.Counterpart != counterpart {
		timeline = projection.NewTimeline(c.self.ID, counterpart)
		c.open = timeline
	}
	token := c.token
	c.mu.Unlock()

	history, err := c.api.History(ctx, token, counterpart, false)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	timeline.Merge(history)

	c.mu.RLock()
	unread := c.unreadFromLocked(counterpart, history)
	c.mu.RUnlock()

	if unread {
		return c.markRead(ctx, timeline)
	}
	return nil
}

// SetDraft tracks the text being typed in the open conversation. A typing
// signal only goes out when the draft becomes empty or stops being empty.
func (c *Client) SetDraft(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.open == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: no open conversation", errors.ErrValidation)
	}
	was, is := c.draftLen > 0, len(text) > 0
	c.draftLen = len(text)
	counterpart := c.open.Counterpart
	c.mu.Unlock()

	if was == is {
		return nil
	}
	return c.sendTyping(counterpart, is)
}

// Send posts a message to the open conversation and appends it locally,
// since the server never pushes a sender its own messages.
func (c *Client) Send(ctx context.Context, text string, image []byte) (domain.Message, error) {
	c.mu.RLock()
	timeline := c.open
	c.mu.RUnlock()
	if timeline == nil {
		return domain.Message{}, fmt.Errorf("%w: no open conversation", errors.ErrValidation)
	}
	body := wire.SendMessageRequest{Text: text}
	if len(image) > 0 {
		body.Image = encodeImage(image)
	}
	message, err := c.api.Send(ctx, c.currentToken(), timeline.Counterpart, body)
	if err != nil {
		return domain.Message{}, err
	}
	timeline.Add(message)
	c.resetDraft(ctx)
	return message, nil
}

// IsPeerTyping reports whether peer signaled typing recently enough.
func (c *Client) IsPeerTyping(peer domain.UserID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	at, ok := c.peerTyping[peer]
	return ok && c.now().Sub(at) < c.options.TypingTimeout
}

func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) Self() domain.UserProfile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.self
}

func (c *Client) Summaries() []domain.ConversationSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.ConversationSummary(nil), c.summaries...)
}

func (c *Client) OnlineUsers() []domain.UserID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.UserID(nil), c.online...)
}

// Messages returns the open conversation, oldest first.
func (c *Client) Messages() []domain.Message {
	c.mu.RLock()
	timeline := c.open
	c.mu.RUnlock()
	if timeline == nil {
		return nil
	}
	return timeline.Messages()
}

// Updates notifies about every applied push. Slow readers miss notifications,
// never state.
func (c *Client) Updates() <-chan event.DomainEvent { return c.updates }

func (c *Client) apply(ctx context.Context, e event.DomainEvent) {
	switch evt := e.(type) {
	case event.NewMessage:
		c.mu.Lock()
		delete(c.peerTyping, evt.Message.SenderID)
		timeline := c.open
		c.mu.Unlock()
		if timeline != nil && timeline.Add(evt.Message) && evt.Message.SenderID == timeline.Counterpart {
			if err := c.markRead(ctx, timeline); err != nil {
				c.log.Warn("Mark read failed", "counterpart_id", timeline.Counterpart, "error", err)
			}
		}
	case event.UpdatedUsers:
		c.mu.Lock()
		c.summaries = evt.Summaries
		c.mu.Unlock()
	case event.MessagesRead:
		c.mu.RLock()
		timeline := c.open
		c.mu.RUnlock()
		if timeline != nil && timeline.Counterpart == evt.ViewerID {
			timeline.MarkOutgoingRead()
		}
	case event.OnlineUsers:
		c.mu.Lock()
		c.online = evt.UserIDs
		c.mu.Unlock()
	case event.TypingStateChanged:
		c.mu.Lock()
		if evt.Signal.IsTyping {
			c.peerTyping[evt.Signal.SenderID] = c.now()
		} else {
			delete(c.peerTyping, evt.Signal.SenderID)
		}
		c.mu.Unlock()
	}
	select {
	case c.updates <- e:
	default:
	}
}

func (c *Client) markRead(ctx context.Context, timeline *projection.Timeline) error {
	if _, err := c.api.MarkRead(ctx, c.currentToken(), timeline.Counterpart); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	timeline.MarkIncomingRead()
	return nil
}

func (c *Client) unreadFromLocked(counterpart domain.UserID, history []domain.Message) bool {
	for _, s := range c.summaries {
		if s.Counterpart.ID == counterpart && s.UnreadCount > 0 {
			return true
		}
	}
	for _, m := range history {
		if m.SenderID == counterpart && !m.Read {
			return true
		}
	}
	return false
}

// resetDraft clears the draft, telling the current counterpart typing stopped.
func (c *Client) resetDraft(ctx context.Context) {
	if err := c.clearDraft(ctx); err != nil {
		c.log.Debug("Typing stop not sent", "error", err)
	}
}

func (c *Client) clearDraft(ctx context.Context) error {
	c.mu.RLock()
	open := c.open != nil
	c.mu.RUnlock()
	if !open {
		return nil
	}
	return c.SetDraft(ctx, "")
}

// sendTyping is fire and forget: without a live session there is nobody to tell.
func (c *Client) sendTyping(receiver domain.UserID, isTyping bool) error {
	frame, err := wire.EncodeTyping(receiver, isTyping)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn = conn
}

func (c *Client) setState(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) wsURL(token string) string {
	base := c.options.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return strings.TrimSuffix(base, "/") + "/ws?token=" + url.QueryEscape(token)
}
