package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"context"
	"log/slog"
)

// Fanout pushes one event to every live session of a user.
// Delivery is best effort: a dead or slow session is counted and skipped,
// and its failure never reaches the caller.
type Fanout struct {
	log      *slog.Logger
	registry contract.IRegistry
	metrics  *observability.Metrics
}

func NewFanout(log *slog.Logger, registry contract.IRegistry, metrics *observability.Metrics) *Fanout {
	return &Fanout{log: log, registry: registry, metrics: metrics}
}

// Push returns how many sessions accepted the event.
func (f *Fanout) Push(ctx context.Context, userID domain.UserID, e event.DomainEvent) int {
	name := string(e.EventName())
	delivered := 0
	for _, s := range f.registry.SessionsOf(userID) {
		if err := s.Consume(ctx, e); err != nil {
			f.metrics.PushesDropped.WithLabelValues(name).Inc()
			f.log.Debug("Push dropped", "user_id", userID, "event", name, "error", err)
			continue
		}
		f.metrics.Pushes.WithLabelValues(name).Inc()
		delivered++
	}
	return delivered
}

// Online reports whether the user currently holds a live session.
func (f *Fanout) Online(userID domain.UserID) bool {
	return len(f.registry.SessionsOf(userID)) > 0
}
