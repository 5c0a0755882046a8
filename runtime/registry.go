package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"
)

type sessionSet map[domain.SessionID]contract.EventSink

// Registry is the Connection Registry: it maps each user to the sinks of
// their live sessions. A user is online exactly when that set is non-empty.
// It lives in memory only and is built fresh by whoever owns the transport.
type Registry struct {
	mu       sync.Mutex
	log      *slog.Logger
	metrics  *observability.Metrics
	sessions map[domain.UserID]sessionSet
}

func NewRegistry(log *slog.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		log:      log,
		metrics:  metrics,
		sessions: make(map[domain.UserID]sessionSet),
	}
}

// Register adds a session to the user's set and reports whether the user
// just came online. Coming online broadcasts the roster to every session;
// an additional session of an already online user only receives the
// current roster for itself.
//
// Pushes happen under the lock so that concurrent roster changes reach
// sessions in the order they were applied. Sinks never block, which keeps
// this cheap.
func (r *Registry) Register(userID domain.UserID, sessionID domain.SessionID, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[userID]
	if !ok {
		set = make(sessionSet)
		r.sessions[userID] = set
	}
	set[sessionID] = sink
	first := len(set) == 1
	r.updateGauges()

	roster := event.OnlineUsers{UserIDs: r.onlineUsersLocked()}
	if first {
		r.log.Info("User online", "user_id", userID, "session_id", sessionID)
		r.broadcastLocked(roster)
	} else {
		r.log.Debug("Additional session", "user_id", userID, "session_id", sessionID, "sessions", len(set))
		r.push(sink, roster)
	}
	return first
}

// Unregister removes a session and reports whether the user went offline,
// in which case the roster is broadcast again. Unknown sessions are ignored.
func (r *Registry) Unregister(userID domain.UserID, sessionID domain.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[userID]
	if !ok {
		return false
	}
	if _, ok := set[sessionID]; !ok {
		return false
	}
	delete(set, sessionID)
	if len(set) > 0 {
		r.updateGauges()
		return false
	}
	// No one is left for this user, drop the entry to avoid leaking empty sets
	delete(r.sessions, userID)
	r.updateGauges()
	r.log.Info("User offline", "user_id", userID)
	r.broadcastLocked(event.OnlineUsers{UserIDs: r.onlineUsersLocked()})
	return true
}

// SessionsOf returns a snapshot of the user's sinks; empty when offline.
func (r *Registry) SessionsOf(userID domain.UserID) []contract.EventSink {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Values(r.sessions[userID])
}

// OnlineUsers returns the ids of users with at least one live session, sorted.
func (r *Registry) OnlineUsers() []domain.UserID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onlineUsersLocked()
}

// Reset forgets every session, as a process restart would.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[domain.UserID]sessionSet)
	r.updateGauges()
}

func (r *Registry) onlineUsersLocked() []domain.UserID {
	users := lo.Keys(r.sessions)
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

func (r *Registry) broadcastLocked(e event.DomainEvent) {
	for _, set := range r.sessions {
		for _, sink := range set {
			r.push(sink, e)
		}
	}
}

func (r *Registry) push(sink contract.EventSink, e event.DomainEvent) {
	name := string(e.EventName())
	if err := sink.Consume(context.Background(), e); err != nil {
		r.metrics.PushesDropped.WithLabelValues(name).Inc()
		r.log.Debug("Roster push dropped", "error", err)
		return
	}
	r.metrics.Pushes.WithLabelValues(name).Inc()
}

func (r *Registry) updateGauges() {
	total := 0
	for _, set := range r.sessions {
		total += len(set)
	}
	r.metrics.LiveSessions.Set(float64(total))
	r.metrics.OnlineUsers.Set(float64(len(r.sessions)))
}
