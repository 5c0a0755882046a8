package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/projection"
	"chat-relay/repositories"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
)

// Coordinator is the Delivery Coordinator. It owns the two write paths of
// the chat (send and mark-read) and the notifications that follow them.
//
// A write either fails before anything is persisted, or is persisted and
// then notified. Notification is best effort and never fails the write.
type Coordinator struct {
	log       *slog.Logger
	messages  repositories.IMessageRepository
	summaries *projection.SummaryBuilder
	blobs     contract.BlobStore
	directory contract.UserDirectory
	fanout    *Fanout
	metrics   *observability.Metrics
}

func NewCoordinator(
	log *slog.Logger,
	messages repositories.IMessageRepository,
	summaries *projection.SummaryBuilder,
	blobs contract.BlobStore,
	directory contract.UserDirectory,
	registry contract.IRegistry,
	metrics *observability.Metrics,
) *Coordinator {
	return &Coordinator{
		log:       log,
		messages:  messages,
		summaries: summaries,
		blobs:     blobs,
		directory: directory,
		fanout:    NewFanout(log, registry, metrics),
		metrics:   metrics,
	}
}

// Send validates, uploads the image if raw bytes were given, persists the
// message and only then notifies. The stored message is returned whether or
// not the receiver is online.
func (c *Coordinator) Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	if cmd.IsEmpty() {
		return domain.Message{}, fmt.Errorf("%w: message needs a text or an image", errors.ErrValidation)
	}
	if cmd.SenderID == cmd.ReceiverID {
		return domain.Message{}, fmt.Errorf("%w: cannot send a message to yourself", errors.ErrValidation)
	}
	if _, err := c.directory.Profile(cmd.ReceiverID); err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) {
			return domain.Message{}, err
		}
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	imageRef := cmd.ImageRef
	if len(cmd.Image) > 0 {
		ref, err := c.blobs.Upload(ctx, cmd.Image)
		if err != nil {
			if stderrors.Is(err, errors.ErrValidation) || stderrors.Is(err, errors.ErrUploadFailed) {
				return domain.Message{}, err
			}
			return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrUploadFailed, err)
		}
		imageRef = ref
	}

	stored, err := c.messages.Append(repositories.DiskMessage{
		Sender:   string(cmd.SenderID),
		Receiver: string(cmd.ReceiverID),
		Text:     cmd.Text,
		ImageRef: imageRef,
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	message := stored.ToDomain()
	c.metrics.MessagesSent.Inc()
	c.log.Debug("Message stored", "message_id", message.ID, "sender_id", message.SenderID, "receiver_id", message.ReceiverID)

	// Persisted: from here on the caller going away must not cut the notifications
	notifyCtx := context.WithoutCancel(ctx)
	c.fanout.Push(notifyCtx, message.ReceiverID, event.NewMessage{Message: message})
	c.pushSummaries(notifyCtx, message.SenderID)
	c.pushSummaries(notifyCtx, message.ReceiverID)
	return message, nil
}

// MarkRead flips every unread message from the counterpart to the viewer and
// returns how many changed. Calling it with nothing unread still notifies,
// with a zero delta.
func (c *Coordinator) MarkRead(ctx context.Context, cmd domain.MarkReadCommand) (int, error) {
	if cmd.ViewerID == "" || cmd.CounterpartID == "" {
		return 0, fmt.Errorf("%w: viewer and counterpart are required", errors.ErrValidation)
	}
	count, err := c.messages.MarkReadFrom(string(cmd.CounterpartID), string(cmd.ViewerID))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	c.metrics.MessagesRead.Add(float64(count))
	c.log.Debug("Messages marked read", "viewer_id", cmd.ViewerID, "counterpart_id", cmd.CounterpartID, "count", count)

	notifyCtx := context.WithoutCancel(ctx)
	c.fanout.Push(notifyCtx, cmd.CounterpartID, event.MessagesRead{ViewerID: cmd.ViewerID})
	c.pushSummaries(notifyCtx, cmd.CounterpartID)
	c.pushSummaries(notifyCtx, cmd.ViewerID)
	return count, nil
}

// History returns the whole conversation in ascending order. With MarkRead
// set, incoming messages are marked read first so the returned log already
// carries the new flags.
func (c *Coordinator) History(ctx context.Context, q domain.HistoryQuery) ([]domain.Message, error) {
	if q.ViewerID == "" || q.CounterpartID == "" {
		return nil, fmt.Errorf("%w: viewer and counterpart are required", errors.ErrValidation)
	}
	if q.MarkRead {
		if _, err := c.MarkRead(ctx, domain.MarkReadCommand{ViewerID: q.ViewerID, CounterpartID: q.CounterpartID}); err != nil {
			return nil, err
		}
	}
	stored, err := c.messages.RangeBetween(string(q.ViewerID), string(q.CounterpartID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	messages := make([]domain.Message, 0, len(stored))
	for _, m := range stored {
		messages = append(messages, m.ToDomain())
	}
	return messages, nil
}

// Summaries is the on-demand contact list of a viewer.
func (c *Coordinator) Summaries(ctx context.Context, viewer domain.UserID) ([]domain.ConversationSummary, error) {
	return c.summaries.SummariesFor(ctx, viewer)
}

// pushSummaries recomputes the viewer's summaries for their live sessions.
// Offline viewers are skipped: they fetch their list on the next connection.
// The write this follows is already persisted, so a failure is only logged.
func (c *Coordinator) pushSummaries(ctx context.Context, viewer domain.UserID) {
	if !c.fanout.Online(viewer) {
		return
	}
	summaries, err := c.summaries.SummariesFor(ctx, viewer)
	if err != nil {
		c.log.Error("Summary recompute failed", "viewer_id", viewer, "error", err)
		return
	}
	c.fanout.Push(ctx, viewer, event.UpdatedUsers{ViewerID: viewer, Summaries: summaries})
}
