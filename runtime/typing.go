package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"fmt"
	"log/slog"
)

// TypingRelay forwards typing signals to the receiver's live sessions.
// Nothing is stored: the relay holds no state at all, so timing out a stale
// indicator is left to the receiving client.
type TypingRelay struct {
	fanout *Fanout
}

func NewTypingRelay(log *slog.Logger, registry contract.IRegistry, metrics *observability.Metrics) *TypingRelay {
	return &TypingRelay{fanout: NewFanout(log, registry, metrics)}
}

// SetTyping returns the number of receiver sessions reached.
func (t *TypingRelay) SetTyping(ctx context.Context, signal domain.TypingSignal) (int, error) {
	if signal.SenderID == "" || signal.ReceiverID == "" {
		return 0, fmt.Errorf("%w: typing signal needs a sender and a receiver", errors.ErrValidation)
	}
	return t.fanout.Push(ctx, signal.ReceiverID, event.TypingStateChanged{Signal: signal}), nil
}
