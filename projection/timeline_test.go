package projection

import (
	"chat-relay/domain"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func message(sender, receiver domain.UserID, at time.Time) domain.Message {
	return domain.Message{ID: uuid.New(), SenderID: sender, ReceiverID: receiver, Text: "hi", CreatedAt: at}
}

func TestTimeline_Deduplicates_And_Orders(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice", "bob")
	now := time.Now()

	first := message("bob", "alice", now)
	second := message("alice", "bob", now.Add(time.Second))
	third := message("bob", "alice", now.Add(2*time.Second))

	// Given the messages arrive out of order and one of them twice
	req.True(timeline.Add(third))
	req.True(timeline.Add(first))
	req.False(timeline.Add(first))
	req.True(timeline.Add(second))

	// Then each message is held once, oldest first
	req.Equal([]domain.Message{first, second, third}, timeline.Messages())
}

func TestTimeline_Ignores_Other_Conversations(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice", "bob")

	req.False(timeline.Add(message("clara", "alice", time.Now())))
	req.Zero(timeline.Len())
}

func TestTimeline_Replace_Then_Push_Of_Same_Message(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice", "bob")
	now := time.Now()
	fetched := message("bob", "alice", now)

	// Given a history fetch raced with the live push of the same message
	timeline.Replace([]domain.Message{fetched, fetched})
	req.False(timeline.Add(fetched))

	req.Equal(1, timeline.Len())
}

func TestTimeline_Read_Flags(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice", "bob")
	now := time.Now()
	timeline.Replace([]domain.Message{
		message("bob", "alice", now),
		message("alice", "bob", now.Add(time.Second)),
		message("bob", "alice", now.Add(2*time.Second)),
	})

	req.Equal(2, timeline.MarkIncomingRead())
	req.Equal(0, timeline.MarkIncomingRead())
	req.Equal(1, timeline.MarkOutgoingRead())
	for _, m := range timeline.Messages() {
		req.True(m.Read)
	}
}

func TestTimeline_Merge_Keeps_Messages_Pushed_During_A_Fetch(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice", "bob")
	now := time.Now()
	stored := message("bob", "alice", now)
	mine := message("alice", "bob", now.Add(time.Second))
	timeline.Replace([]domain.Message{stored, mine})
	timeline.MarkIncomingRead()

	// Given a push that landed after the history was read on the server
	live := message("bob", "alice", now.Add(2*time.Second))
	req.True(timeline.Add(live))

	// When the fetched history comes back, with mine read in the meantime
	// and stored still unread as of the fetch
	mineRead := mine
	mineRead.Read = true
	added := timeline.Merge([]domain.Message{stored, mineRead})

	// Then nothing is lost and no read flag goes backwards
	req.Zero(added)
	messages := timeline.Messages()
	req.Len(messages, 3)
	req.Equal(live.ID, messages[2].ID)
	req.True(messages[0].Read)
	req.True(messages[1].Read)
}
