//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	markReadBatchSize  = 500
	maxConflictRetries = 5
)

type IMessageRepository interface {
	Append(message DiskMessage) (DiskMessage, error)
	RangeBetween(userA, userB string) ([]DiskMessage, error)
	LastBetween(userA, userB string) (*DiskMessage, error)
	UnreadCount(from, to string) (uint, error)
	MarkReadFrom(sender, receiver string) (int, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger

	mu     sync.Mutex
	lastAt time.Time
	now    func() time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log, now: time.Now}
}

type DiskMessage struct {
	ID       uuid.UUID
	Sender   string
	Receiver string
	Text     string
	ImageRef string
	Read     bool
	At       time.Time
}

func (m DiskMessage) ToDomain() domain.Message {
	return domain.Message{
		ID:         m.ID,
		SenderID:   domain.UserID(m.Sender),
		ReceiverID: domain.UserID(m.Receiver),
		Text:       m.Text,
		ImageRef:   m.ImageRef,
		Read:       m.Read,
		CreatedAt:  m.At,
	}
}

// Append stores a new message. The id, the timestamp and the read flag are
// always assigned here, whatever the caller put in them.
//
// The record lives under "msg:{low}:{high}:{timestamp_padded}:{uuid}" where low/high
// are the two user ids sorted, so a prefix scan yields the conversation in
// chronological order. While the message is unread, an index entry
// "unread:{receiver}:{sender}:{timestamp_padded}:{uuid}" points to the record.
func (m *MessageRepository) Append(message DiskMessage) (DiskMessage, error) {
	message.ID = uuid.New()
	message.At = m.nextTimestamp()
	message.Read = false

	key := messageKey(message)
	err := m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, encodeMessage(message)); err != nil {
			return err
		}
		return txn.Set(unreadKey(message), key)
	})
	if err != nil {
		return DiskMessage{}, fmt.Errorf("append message: %w", err)
	}
	return message, nil
}

// RangeBetween returns the full history of a pair, oldest first.
func (m *MessageRepository) RangeBetween(userA, userB string) ([]DiskMessage, error) {
	var messages []DiskMessage
	prefix := pairPrefix(userA, userB)
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				message, err := decodeMessage(value)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("range between %s and %s: %w", userA, userB, err)
	}
	return messages, nil
}

// LastBetween returns the most recent message of a pair, or nil when they never talked.
func (m *MessageRepository) LastBetween(userA, userB string) (*DiskMessage, error) {
	var last *DiskMessage
	prefix := pairPrefix(userA, userB)
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.PrefetchSize = 1
		it := txn.NewIterator(options)
		defer it.Close()

		// 0xFF sorts after every printable byte, so the reverse seek lands
		// on the newest key of the prefix.
		it.Seek(append(append([]byte{}, prefix...), 0xFF))
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		return it.Item().Value(func(value []byte) error {
			message, err := decodeMessage(value)
			if err != nil {
				return err
			}
			last = &message
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("last between %s and %s: %w", userA, userB, err)
	}
	return last, nil
}

// UnreadCount counts the messages sent by from to to that are still unread.
// Only index keys are walked, values are never fetched.
func (m *MessageRepository) UnreadCount(from, to string) (uint, error) {
	var count uint
	prefix := unreadPrefix(to, from)
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("unread count %s to %s: %w", from, to, err)
	}
	return count, nil
}

// MarkReadFrom flips every unread message from sender to receiver and returns
// how many changed. Zero is a valid answer.
// Two concurrent calls on the same pair touch the same index keys, so Badger
// rejects one of them with a conflict; it is retried and then finds nothing left.
func (m *MessageRepository) MarkReadFrom(sender, receiver string) (int, error) {
	prefix := unreadPrefix(receiver, sender)
	total := 0
	for {
		n, err := m.markReadBatchWithRetry(prefix)
		if err != nil {
			return total, fmt.Errorf("mark read %s to %s: %w", sender, receiver, err)
		}
		total += n
		if n < markReadBatchSize {
			return total, nil
		}
	}
}

func (m *MessageRepository) markReadBatchWithRetry(prefix []byte) (int, error) {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		var n int
		n, err = m.markReadBatch(prefix)
		if !errors.Is(err, badger.ErrConflict) {
			return n, err
		}
		m.log.Debug("Mark read conflicted, retrying", "attempt", attempt+1)
	}
	return 0, err
}

func (m *MessageRepository) markReadBatch(prefix []byte) (int, error) {
	count := 0
	err := m.db.Update(func(txn *badger.Txn) error {
		indexKeys, recordKeys, err := collectUnread(txn, prefix)
		if err != nil {
			return err
		}
		for i, recordKey := range recordKeys {
			item, err := txn.Get(recordKey)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				// Dangling index entry, nothing to flip.
				if err := txn.Delete(indexKeys[i]); err != nil {
					return err
				}
				continue
			case err != nil:
				return err
			}
			var message DiskMessage
			err = item.Value(func(value []byte) error {
				message, err = decodeMessage(value)
				return err
			})
			if err != nil {
				return err
			}
			message.Read = true
			if err := txn.Set(recordKey, encodeMessage(message)); err != nil {
				return err
			}
			if err := txn.Delete(indexKeys[i]); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func collectUnread(txn *badger.Txn, prefix []byte) ([][]byte, [][]byte, error) {
	var indexKeys, recordKeys [][]byte
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if len(indexKeys) == markReadBatchSize {
			break
		}
		item := it.Item()
		recordKey, err := item.ValueCopy(nil)
		if err != nil {
			return nil, nil, err
		}
		indexKeys = append(indexKeys, item.KeyCopy(nil))
		recordKeys = append(recordKeys, recordKey)
	}
	return indexKeys, recordKeys, nil
}

// nextTimestamp keeps createdAt strictly increasing inside the process so
// that two messages of the same pair never share a sort position.
func (m *MessageRepository) nextTimestamp() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	at := m.now().UTC()
	if !at.After(m.lastAt) {
		at = m.lastAt.Add(time.Nanosecond)
	}
	m.lastAt = at
	return at
}

func pairPrefix(userA, userB string) []byte {
	low, high := userA, userB
	if high < low {
		low, high = high, low
	}
	return []byte(fmt.Sprintf("msg:%s:%s:", low, high))
}

func messageKey(message DiskMessage) []byte {
	return append(pairPrefix(message.Sender, message.Receiver),
		fmt.Sprintf("%019d:%s", message.At.UnixNano(), message.ID)...)
}

func unreadPrefix(receiver, sender string) []byte {
	return []byte(fmt.Sprintf("unread:%s:%s:", receiver, sender))
}

func unreadKey(message DiskMessage) []byte {
	return append(unreadPrefix(message.Receiver, message.Sender),
		fmt.Sprintf("%019d:%s", message.At.UnixNano(), message.ID)...)
}
