package domain

import (
	"time"

	"github.com/google/uuid"
)

type SessionID string

func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// LiveSession is one live transport connection of a signed-in user.
// A user may hold several of them at once (tabs, devices).
type LiveSession struct {
	UserID      UserID
	SessionID   SessionID
	ConnectedAt time.Time
}

func NewLiveSession(userID UserID) LiveSession {
	return LiveSession{UserID: userID, SessionID: NewSessionID(), ConnectedAt: time.Now()}
}

// TypingSignal is transient: it is relayed and forgotten.
type TypingSignal struct {
	SenderID   UserID
	ReceiverID UserID
	IsTyping   bool
}
