package auth

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/notifmoo/notif/internal/apperrors"
	"github.com/notifmoo/notif/internal/store"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Service handles dashboard registration and login.
type Service struct {
	users  *store.UserRepository
	jwt    *JWTManager
	hasher *PasswordHasher
}

// NewService creates the dashboard auth service.
func NewService(users *store.UserRepository, jwt *JWTManager, hasher *PasswordHasher) *Service {
	return &Service{users: users, jwt: jwt, hasher: hasher}
}

// Register creates a user and returns it with a fresh token.
func (s *Service) Register(ctx context.Context, name, email, password string) (*store.User, string, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" || len(name) > 255 {
		return nil, "", apperrors.Validation("name must be 1-255 characters")
	}
	if !emailPattern.MatchString(email) {
		return nil, "", apperrors.Validation("invalid email")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return nil, "", apperrors.Validation("email already registered")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, "", err
	}

	user, err := s.users.Create(ctx, name, email, hash)
	if err != nil {
		return nil, "", err
	}

	token, err := s.jwt.Issue(user.ID)
	if err != nil {
		return nil, "", err
	}

	log.Info().Str("user_id", user.ID.String()).Msg("User registered")
	return user, token, nil
}

// Login verifies credentials and returns the user with a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (*store.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if user == nil || !s.hasher.Verify(password, user.PasswordHash) {
		return nil, "", apperrors.Auth("invalid email or password")
	}

	token, err := s.jwt.Issue(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}
