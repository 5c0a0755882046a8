package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_CreateUser_And_Lookups(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))

	created, err := repository.CreateUser("Alice", "Alice@Example.com", "hash")
	req.NoError(err)
	req.NotEmpty(created.ID)
	req.Equal("alice@example.com", created.Email)

	byEmail, err := repository.GetUserByEmail("ALICE@example.com")
	req.NoError(err)
	req.Equal(created.ID, byEmail.ID)
	req.Equal("hash", byEmail.PasswordHash)

	byID, err := repository.GetUserByID(created.ID)
	req.NoError(err)
	req.Equal(byEmail, byID)
}

func Test_CreateUser_Rejects_Duplicate_Email(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))

	_, err := repository.CreateUser("Alice", "alice@example.com", "hash")
	req.NoError(err)
	_, err = repository.CreateUser("Other Alice", "alice@example.com", "hash")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_Unknown_User_Is_Not_Found(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))

	_, err := repository.GetUserByID("nobody")
	req.ErrorIs(err, errors.ErrUserNotFound)
	_, err = repository.GetUserByEmail("nobody@example.com")
	req.ErrorIs(err, errors.ErrUserNotFound)
	_, err = repository.Profile("nobody")
	req.ErrorIs(err, errors.ErrUserNotFound)
}

func Test_ProfilesExcept(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))

	clara, err := repository.CreateUser("Clara", "clara@example.com", "hash")
	req.NoError(err)
	alice, err := repository.CreateUser("Alice", "alice@example.com", "hash")
	req.NoError(err)
	bob, err := repository.CreateUser("Bob", "bob@example.com", "hash")
	req.NoError(err)

	profiles, err := repository.ProfilesExcept(domain.UserID(bob.ID))
	req.NoError(err)
	req.Equal([]domain.UserProfile{alice.ToProfile(), clara.ToProfile()}, profiles)
}
