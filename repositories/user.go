//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IUserRepository interface {
	CreateUser(name, email, hashedPassword string) (User, error)
	GetUserByEmail(email string) (User, error)
	GetUserByID(id string) (User, error)
	ListUsers() ([]User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

// User is the repository-side representation of an account.
// Equivalent to DiskMessage for the account domain.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	ProfilePic   string
	CreatedAt    time.Time
}

func (u User) ToProfile() domain.UserProfile {
	return domain.UserProfile{
		ID:         domain.UserID(u.ID),
		Name:       u.Name,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		CreatedAt:  u.CreatedAt,
	}
}

// CreateUser persists a new account and returns it with its generated id.
// The email is the uniqueness key; it is stored lower-cased.
func (u UserRepository) CreateUser(name, email, hashedPassword string) (User, error) {
	user := User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        strings.ToLower(email),
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC(),
	}
	err := u.db.Update(func(txn *badger.Txn) error {
		emailKey := userEmailKey(user.Email)
		if _, err := txn.Get(emailKey); err == nil {
			return errors.ErrUserAlreadyExists
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(emailKey, []byte(user.ID)); err != nil {
			return err
		}
		return txn.Set(userIDKey(user.ID), encodeUser(user))
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// GetUserByEmail resolves the email index then loads the record.
func (u UserRepository) GetUserByEmail(email string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userEmailKey(strings.ToLower(email)))
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		user, err = getUser(txn, string(id))
		return err
	})
	return user, notFound(err)
}

func (u UserRepository) GetUserByID(id string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, id)
		return err
	})
	return user, notFound(err)
}

// ListUsers returns every account ordered by name.
func (u UserRepository) ListUsers() ([]User, error) {
	var users []User
	prefix := []byte("user:id:")
	err := u.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				user, err := decodeUser(value)
				if err != nil {
					return err
				}
				users = append(users, user)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

// Profile implements contract.UserDirectory.
func (u UserRepository) Profile(userID domain.UserID) (domain.UserProfile, error) {
	user, err := u.GetUserByID(string(userID))
	if err != nil {
		return domain.UserProfile{}, err
	}
	return user.ToProfile(), nil
}

// ProfilesExcept implements contract.UserDirectory.
func (u UserRepository) ProfilesExcept(userID domain.UserID) ([]domain.UserProfile, error) {
	users, err := u.ListUsers()
	if err != nil {
		return nil, err
	}
	others := lo.Filter(users, func(user User, _ int) bool { return user.ID != string(userID) })
	return lo.Map(others, func(user User, _ int) domain.UserProfile { return user.ToProfile() }), nil
}

func getUser(txn *badger.Txn, id string) (User, error) {
	item, err := txn.Get(userIDKey(id))
	if err != nil {
		return User{}, err
	}
	var user User
	err = item.Value(func(value []byte) error {
		user, err = decodeUser(value)
		return err
	})
	return user, err
}

func notFound(err error) error {
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrUserNotFound
	}
	return err
}

func userEmailKey(email string) []byte { return []byte("user:email:" + email) }

func userIDKey(id string) []byte { return []byte("user:id:" + id) }
