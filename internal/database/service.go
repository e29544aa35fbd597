package database

import (
	"context"
	"errors"
	"strings"

	"github.com/ZanzyTHEbar/scriptmatch/internal/auth"
	apperrors "github.com/ZanzyTHEbar/scriptmatch/internal/errors"
)

// UserService provides registration, login and session checks
type UserService struct {
	repo   Repository
	tokens *auth.TokenIssuer
	params auth.Params
}

// NewUserService creates a new user service
func NewUserService(repo Repository, tokens *auth.TokenIssuer) *UserService {
	return &UserService{
		repo:   repo,
		tokens: tokens,
		params: auth.DefaultParams,
	}
}

// WithParams overrides the password hashing cost
func (s *UserService) WithParams(p auth.Params) *UserService {
	s.params = p
	return s
}

// Register creates an account with a hashed password
func (s *UserService) Register(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperrors.NewMissingInputError("Username is required")
	}
	if password == "" {
		return nil, apperrors.NewMissingInputError("Password is required")
	}

	hash, err := auth.HashPassword(password, s.params)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to hash password", err)
	}

	user, err := s.repo.CreateUser(ctx, NewUser{Username: username, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, apperrors.NewConflictError("Username already taken", err)
		}
		return nil, apperrors.NewPersistenceError("failed to create user", err)
	}

	return user, nil
}

// Authenticate checks credentials and issues a session token. Unknown users
// and wrong passwords produce the same error.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*User, string, error) {
	user, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", apperrors.NewUnauthorizedError("Invalid credentials")
		}
		return nil, "", apperrors.NewPersistenceError("failed to load user", err)
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, "", apperrors.NewUnauthorizedError("Invalid credentials")
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", apperrors.NewInternalError("failed to issue token", err)
	}

	return user, token, nil
}

// ValidateSessionToken validates a token and returns the user id it carries
func (s *UserService) ValidateSessionToken(token string) (int64, error) {
	userID, err := s.tokens.Validate(token)
	if err != nil {
		return 0, apperrors.NewUnauthorizedError("Invalid or expired token")
	}
	return userID, nil
}
