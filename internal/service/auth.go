// Package service contains the business logic layer.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the database
//
// Services accept primitives and return domain models and apperror values;
// they know nothing about HTTP, and the repositories they receive are
// interfaces, so tests inject in-memory fakes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/sakif/learnpath/internal/apperror"
	"github.com/sakif/learnpath/internal/auth"
	"github.com/sakif/learnpath/internal/model"
	"github.com/sakif/learnpath/internal/repository"
)

// MinPasswordLength is the floor for new account passwords. bcrypt's own
// 72-byte ceiling is enforced by the password service.
const MinPasswordLength = 6

// AuthService handles registration, login, and session issuance.
type AuthService struct {
	users     repository.UserRepository
	metrics   repository.MetricsRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	metrics repository.MetricsRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		metrics:   metrics,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the handler can
// set the cookie and write the response body in one step.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Register creates a new account.
//
// The new user gets a zeroed metrics row immediately — every other part of
// the system may assume the row exists. A duplicate email surfaces as
// apperror.Conflict straight from the repository's UNIQUE constraint; there
// is no check-then-insert race.
func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.ValidationFailed("email", "a valid email address is required")
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
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	if err := s.metrics.InitUser(ctx, user.ID); err != nil {
		// The account exists; a missing metrics row will be repaired by
		// the first recalculation (the upsert inserts it).
		s.logger.Error("failed to initialize user metrics",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// Login verifies credentials and issues a fresh session token.
//
// Unknown email and wrong password produce the same "invalid credentials"
// error so the endpoint cannot be used to enumerate accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid credentials")
		}
		// A storage failure is not a credential problem.
		return nil, fmt.Errorf("service/auth: fetching user by email: %w", err)
	}
	if user.PasswordHash == "" {
		// Google-only account — it has no password to check.
		return nil, apperror.Unauthorized("invalid credentials")
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized("invalid credentials")
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return &AuthResult{User: user, Token: token}, nil
}

// LoginWithGoogle finds or creates the account for a verified Google user
// and issues a session token. First sign-in creates the account (with an
// empty password hash and a metrics row); later sign-ins just look it up by
// the stable Google subject ID.
func (s *AuthService) LoginWithGoogle(ctx context.Context, gUser *auth.GoogleUser) (*AuthResult, error) {
	if gUser == nil {
		return nil, fmt.Errorf("service/auth: Google user must not be nil")
	}

	user, err := s.users.GetUserByGoogleID(ctx, gUser.Sub)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/auth: fetching user by Google ID: %w", err)
		}
		user = &model.User{
			Email:    strings.ToLower(gUser.Email),
			GoogleID: gUser.Sub,
		}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: creating Google user: %w", err)
		}
		if err := s.metrics.InitUser(ctx, user.ID); err != nil {
			s.logger.Error("failed to initialize user metrics",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		s.logger.Info("user registered via Google", slog.String("userID", user.ID))
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID. Used by the
// /api/auth/me handler after the middleware validates the session.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}
