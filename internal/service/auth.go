// Package service contains the business logic layer.
//
// Handlers parse HTTP and write responses; services validate input,
// enforce the rules, and orchestrate repositories and external
// collaborators; repositories talk to the database. Services receive
// interfaces, never concrete storage types, so tests swap in mocks with
// plain Go values.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/sakif/gallery/internal/apperror"
	"github.com/sakif/gallery/internal/auth"
	"github.com/sakif/gallery/internal/model"
	"github.com/sakif/gallery/internal/repository"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 6
)

// badCredentials is the single message for every login failure. An
// unknown username and a wrong password must be indistinguishable to the
// caller, so both paths return exactly this error.
const badCredentials = "incorrect username or password"

// AuthService handles registration, login, and token issuing.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all dependencies injected.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// Register validates the input, hashes the password, and creates the
// account. Duplicate usernames and emails surface as apperror.ErrConflict
// straight from the repository's unique constraints.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if n := utf8.RuneCountInString(username); n < MinUsernameLength || n > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be between %d and %d characters", MinUsernameLength, MaxUsernameLength))
	}

	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.ValidationFailed("email", "email address is not valid")
	}

	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	}

	if err := s.users.Create(ctx, user); err != nil {
		// Conflicts are an expected outcome, not a server fault.
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to create user",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("registering user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("id", user.ID),
		slog.String("username", user.Username),
	)

	return user, nil
}

// Login verifies the credentials and issues a signed access token.
//
// Lookup is by exact, case-sensitive username. A missing user and a
// failed password check both return the same Unauthenticated error —
// the response must not reveal whether the username exists.
//
// Note: IsActive is intentionally not consulted here. Deactivated
// accounts can still log in; see DESIGN.md before changing that.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.Unauthenticated(badCredentials)
		}
		return "", fmt.Errorf("looking up user %q: %w", username, err)
	}

	if !s.passwords.Verify(password, user.PasswordHash) {
		return "", apperror.Unauthenticated(badCredentials)
	}

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		return "", fmt.Errorf("issuing token for %q: %w", username, err)
	}

	s.logger.Info("user logged in", slog.String("username", user.Username))

	return token, nil
}
