package projection

import (
	"chat-relay/domain"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Timeline is the local log of one conversation as a client sees it.
// It keeps messages in ascending createdAt order and holds each id once,
// however many times the message was pushed or fetched.
type Timeline struct {
	mu          sync.RWMutex
	Owner       domain.UserID
	Counterpart domain.UserID
	messages    []domain.Message
	seen        map[uuid.UUID]struct{}
}

func NewTimeline(owner, counterpart domain.UserID) *Timeline {
	return &Timeline{
		Owner:       owner,
		Counterpart: counterpart,
		seen:        make(map[uuid.UUID]struct{}),
	}
}

// Replace swaps the whole log for a freshly fetched history.
func (t *Timeline) Replace(messages []domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
	t.seen = make(map[uuid.UUID]struct{}, len(messages))
	for _, m := range messages {
		t.insertLocked(m)
	}
}

// Merge folds a freshly fetched history into the log. Messages pushed while
// the fetch was in flight are kept, and a read flag never goes back to
// unread. It returns how many messages were new.
func (t *Timeline) Merge(messages []domain.Message) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	added := 0
	for _, m := range messages {
		if _, ok := t.seen[m.ID]; !ok {
			if t.insertLocked(m) {
				added++
			}
			continue
		}
		for i := range t.messages {
			if t.messages[i].ID == m.ID {
				m.Read = m.Read || t.messages[i].Read
				t.messages[i] = m
				break
			}
		}
	}
	return added
}

// Add inserts m at its chronological place. It returns false when m is
// already known or does not belong to this conversation.
func (t *Timeline) Add(m domain.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insertLocked(m)
}

// MarkIncomingRead flips the counterpart's messages locally, mirroring a
// mark-read request that was just sent.
func (t *Timeline) MarkIncomingRead() int {
	return t.markRead(t.Counterpart)
}

// MarkOutgoingRead flips the owner's messages once the counterpart read them.
func (t *Timeline) MarkOutgoingRead() int {
	return t.markRead(t.Owner)
}

func (t *Timeline) Messages() []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

func (t *Timeline) markRead(sender domain.UserID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	changed := 0
	for i := range t.messages {
		if t.messages[i].SenderID == sender && !t.messages[i].Read {
			t.messages[i].Read = true
			changed++
		}
	}
	return changed
}

func (t *Timeline) insertLocked(m domain.Message) bool {
	if !m.Involves(t.Owner, t.Counterpart) {
		return false
	}
	if _, ok := t.seen[m.ID]; ok {
		return false
	}
	t.seen[m.ID] = struct{}{}

	// Pushes arrive in order most of the time, so the search usually ends at the tail.
	i := sort.Search(len(t.messages), func(i int) bool {
		return t.messages[i].CreatedAt.After(m.CreatedAt)
	})
	t.messages = append(t.messages, domain.Message{})
	copy(t.messages[i+1:], t.messages[i:])
	t.messages[i] = m
	return true
}
