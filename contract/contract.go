//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the push end of one live session.
// Consume must never block: a sink that cannot take the event right away
// returns an error and the event is dropped.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry maps a user to the sinks of all their live sessions.
type IRegistry interface {
	Register(userID domain.UserID, sessionID domain.SessionID, sink EventSink) bool
	Unregister(userID domain.UserID, sessionID domain.SessionID) bool
	SessionsOf(userID domain.UserID) []EventSink
	OnlineUsers() []domain.UserID
}

// BlobStore persists raw image bytes and returns a reference usable in messages.
type BlobStore interface {
	Upload(ctx context.Context, raw []byte) (string, error)
}

// UserDirectory exposes the static profiles owned by the account subsystem.
type UserDirectory interface {
	Profile(userID domain.UserID) (domain.UserProfile, error)
	ProfilesExcept(userID domain.UserID) ([]domain.UserProfile, error)
}
