package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wadahkode/beranda/internal/domain"
	"github.com/wadahkode/beranda/internal/metrics"
	"golang.org/x/crypto/bcrypt"
)

// usernamePattern constrains usernames to a URL- and log-safe alphabet.
var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,32}$`)

const minPasswordLength = 8

// Service is the application layer, the only component that references
// multiple domain components. It orchestrates all use cases.
type Service struct {
	users       domain.UserRepository
	sessions    domain.SessionRepository
	viewers     domain.ViewerSource
	invalidator domain.ViewerCacheInvalidator
	bcryptCost  int
	sessionTTL  time.Duration
}

// NewService creates the application layer service.
func NewService(users domain.UserRepository, sessions domain.SessionRepository, viewers domain.ViewerSource, invalidator domain.ViewerCacheInvalidator, bcryptCost int, sessionTTL time.Duration) *Service {
	return &Service{
		users:       users,
		sessions:    sessions,
		viewers:     viewers,
		invalidator: invalidator,
		bcryptCost:  bcryptCost,
		sessionTTL:  sessionTTL,
	}
}

// Register creates a new account with a bcrypt-hashed password. Usernames
// are normalized to lowercase before validation and storage.
func (s *Service) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if !usernamePattern.MatchString(username) {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.ErrInvalidUsername
	}
	if len(password) < minPasswordLength {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, username, string(hash))
	if err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) {
			metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
			return nil, err
		}
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	metrics.RegistrationsTotal.WithLabelValues("success").Inc()
	slog.Info("User registered", "username", user.Username, "user_id", user.ID)
	return user, nil
}

// Login verifies credentials and mints a server-side session. Unknown
// usernames and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*domain.Session, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
			return nil, domain.ErrInvalidCredentials
		}
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	session, err := s.sessions.Create(ctx, user.Username, s.sessionTTL)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	slog.Info("User logged in", "username", user.Username)
	return session, nil
}

// Logout revokes the session and drops its cached viewer config. A failed
// cache invalidation is logged, not returned: the entry expires on its own
// and the session itself is already gone.
func (s *Service) Logout(ctx context.Context, sessionToken string) error {
	if sessionToken == "" {
		return nil
	}

	if err := s.sessions.Delete(ctx, sessionToken); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	if err := s.invalidator.InvalidateCache(ctx, sessionToken); err != nil {
		slog.Error("Failed to invalidate viewer cache after logout", "error", err)
	}

	return nil
}

// CurrentViewer resolves the viewer config for a session token through the
// cache hierarchy. An empty token yields the anonymous config.
func (s *Service) CurrentViewer(ctx context.Context, sessionToken string) (*domain.ViewerConfig, error) {
	return s.viewers.GetViewerConfig(ctx, sessionToken)
}

// SetTheme updates the user's display preference and drops the cached viewer
// config so the change is visible on the next request.
func (s *Service) SetTheme(ctx context.Context, userID uuid.UUID, sessionToken, theme string) (domain.Theme, error) {
	if theme != string(domain.ThemeLight) && theme != string(domain.ThemeDark) {
		return "", domain.ErrInvalidTheme
	}
	parsed := domain.ParseTheme(theme)

	if err := s.users.UpdateTheme(ctx, userID, parsed); err != nil {
		return "", fmt.Errorf("failed to update theme: %w", err)
	}
	metrics.ThemeChangesTotal.WithLabelValues(string(parsed)).Inc()

	if err := s.invalidator.InvalidateCache(ctx, sessionToken); err != nil {
		slog.Error("Failed to invalidate viewer cache after theme change", "error", err, "user_id", userID)
	}

	slog.Info("Theme updated", "user_id", userID, "theme", parsed)
	return parsed, nil
}

// GetUserByID retrieves a user by internal ID.
func (s *Service) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}
