// Package projection derives read models from stored messages.
// Handles ordering, deduplication, and projections.
// Does not emit events or interact with transports directly.
package projection

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// SummaryBuilder is the Conversation Summary Builder. It has no cache: every
// call recomputes from the message store, so a summary can never be staler
// than the store itself. Adding a cache means adding invalidation on every
// send and mark-read path.
type SummaryBuilder struct {
	messages    repositories.IMessageRepository
	directory   contract.UserDirectory
	concurrency int
}

func NewSummaryBuilder(messages repositories.IMessageRepository, directory contract.UserDirectory, concurrency int) *SummaryBuilder {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &SummaryBuilder{messages: messages, directory: directory, concurrency: concurrency}
}

// SummariesFor computes the summaries of viewer against every other known user.
func (b *SummaryBuilder) SummariesFor(ctx context.Context, viewer domain.UserID) ([]domain.ConversationSummary, error) {
	candidates, err := b.directory.ProfilesExcept(viewer)
	if err != nil {
		return nil, fmt.Errorf("%w: list profiles: %v", errors.ErrStoreUnavailable, err)
	}
	return b.SummariesForCandidates(ctx, viewer, candidates)
}

// SummariesForCandidates issues one last-message and one unread-count query
// per candidate, a bounded number of candidates at a time.
func (b *SummaryBuilder) SummariesForCandidates(ctx context.Context, viewer domain.UserID,
	candidates []domain.UserProfile) ([]domain.ConversationSummary, error) {
	summaries := make([]domain.ConversationSummary, len(candidates))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, candidate := range candidates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			summary, err := b.summarize(viewer, candidate)
			if err != nil {
				return err
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	SortSummaries(summaries)
	return summaries, nil
}

func (b *SummaryBuilder) summarize(viewer domain.UserID, counterpart domain.UserProfile) (domain.ConversationSummary, error) {
	last, err := b.messages.LastBetween(string(viewer), string(counterpart.ID))
	if err != nil {
		return domain.ConversationSummary{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	unread, err := b.messages.UnreadCount(string(counterpart.ID), string(viewer))
	if err != nil {
		return domain.ConversationSummary{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	var lastMessage *domain.Message
	if last != nil {
		m := last.ToDomain()
		lastMessage = &m
	}
	return domain.NewConversationSummary(counterpart, lastMessage, unread), nil
}

// SortSummaries puts the most recent conversations first. Counterparts the
// viewer never talked to follow, by name.
func SortSummaries(summaries []domain.ConversationSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		switch {
		case a.LastMessageTime != nil && b.LastMessageTime != nil:
			if !a.LastMessageTime.Equal(*b.LastMessageTime) {
				return a.LastMessageTime.After(*b.LastMessageTime)
			}
		case a.LastMessageTime != nil:
			return true
		case b.LastMessageTime != nil:
			return false
		}
		if a.Counterpart.Name != b.Counterpart.Name {
			return a.Counterpart.Name < b.Counterpart.Name
		}
		return a.Counterpart.ID < b.Counterpart.ID
	})
}
