package services

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"fmt"
	"log/slog"
)

type IAuthService interface {
	Register(name, email, password string) (Session, error)
	Login(email, password string) (Session, error)
	Me(userID domain.UserID) (domain.UserProfile, error)
}

// Session is what a client gets back from register and login.
type Session struct {
	Token string
	User  domain.UserProfile
}

type AuthService struct {
	log            *slog.Logger
	userRepository repositories.IUserRepository
	issuer         *auth.TokenIssuer
}

func NewAuthService(log *slog.Logger, repo repositories.IUserRepository, issuer *auth.TokenIssuer) *AuthService {
	return &AuthService{log: log, userRepository: repo, issuer: issuer}
}

func (s *AuthService) Register(name, email, password string) (Session, error) {
	// Validated before any expensive cryptographic operation
	if err := auth.ValidateRegister(auth.RegisterRequest{Name: name, Email: email, Password: password}); err != nil {
		return Session{}, err
	}

	// The repository never sees a plain password
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.userRepository.CreateUser(name, email, hashedPassword)
	if err != nil {
		return Session{}, err // ErrUserAlreadyExists when the email is taken
	}
	s.log.Info("User registered", "user_id", user.ID)
	return s.issue(user)
}

func (s *AuthService) Login(email, password string) (Session, error) {
	if err := auth.ValidateLogin(auth.LoginRequest{Email: email, Password: password}); err != nil {
		return Session{}, err
	}
	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return Session{}, errors.ErrInvalidCredentials
	}
	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return Session{}, errors.ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *AuthService) Me(userID domain.UserID) (domain.UserProfile, error) {
	user, err := s.userRepository.GetUserByID(string(userID))
	if err != nil {
		return domain.UserProfile{}, err
	}
	return user.ToProfile(), nil
}

func (s *AuthService) issue(user repositories.User) (Session, error) {
	token, err := s.issuer.GenerateToken(domain.UserID(user.ID))
	if err != nil {
		return Session{}, errors.ErrTokenGeneration
	}
	return Session{Token: token, User: user.ToProfile()}, nil
}
