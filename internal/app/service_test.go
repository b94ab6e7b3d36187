package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadahkode/beranda/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// --- Mock implementations ---

type mockUserRepo struct {
	getByIDFn       func(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	getByUsernameFn func(ctx context.Context, username string) (*domain.User, error)
	createFn        func(ctx context.Context, username, passwordHash string) (*domain.User, error)
	updateThemeFn   func(ctx context.Context, userID uuid.UUID, theme domain.Theme) error
}

func (m *mockUserRepo) GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, userID)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(ctx, username)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockUserRepo) Create(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, username, passwordHash)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockUserRepo) UpdateTheme(ctx context.Context, userID uuid.UUID, theme domain.Theme) error {
	if m.updateThemeFn != nil {
		return m.updateThemeFn(ctx, userID, theme)
	}
	return nil
}

type mockSessionRepo struct {
	createFn     func(ctx context.Context, username string, ttl time.Duration) (*domain.Session, error)
	getByTokenFn func(ctx context.Context, token string) (*domain.Session, error)
	deleteFn     func(ctx context.Context, token string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, username string, ttl time.Duration) (*domain.Session, error) {
	if m.createFn != nil {
		return m.createFn(ctx, username, ttl)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockSessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	if m.getByTokenFn != nil {
		return m.getByTokenFn(ctx, token)
	}
	return nil, domain.ErrSessionNotFound
}

func (m *mockSessionRepo) Delete(ctx context.Context, token string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, token)
	}
	return nil
}

type mockViewerSource struct {
	getViewerConfigFn func(ctx context.Context, sessionToken string) (*domain.ViewerConfig, error)
}

func (m *mockViewerSource) GetViewerConfig(ctx context.Context, sessionToken string) (*domain.ViewerConfig, error) {
	if m.getViewerConfigFn != nil {
		return m.getViewerConfigFn(ctx, sessionToken)
	}
	return &domain.ViewerConfig{}, nil
}

type mockInvalidator struct {
	invalidateCacheFn func(ctx context.Context, sessionToken string) error
}

func (m *mockInvalidator) InvalidateCache(ctx context.Context, sessionToken string) error {
	if m.invalidateCacheFn != nil {
		return m.invalidateCacheFn(ctx, sessionToken)
	}
	return nil
}

// newTestService creates a Service for testing. MinCost keeps the bcrypt
// work factor out of the test runtime.
func newTestService(users domain.UserRepository, sessions domain.SessionRepository, viewers domain.ViewerSource, invalidator domain.ViewerCacheInvalidator) *Service {
	if viewers == nil {
		viewers = &mockViewerSource{}
	}
	if invalidator == nil {
		invalidator = &mockInvalidator{}
	}
	return &Service{
		users:       users,
		sessions:    sessions,
		viewers:     viewers,
		invalidator: invalidator,
		bcryptCost:  bcrypt.MinCost,
		sessionTTL:  time.Hour,
	}
}

// --- Register tests ---

func TestRegister_Success(t *testing.T) {
	var gotUsername, gotHash string

	users := &mockUserRepo{
		createFn: func(_ context.Context, username, passwordHash string) (*domain.User, error) {
			gotUsername = username
			gotHash = passwordHash
			return &domain.User{ID: uuid.New(), Username: username, Theme: domain.ThemeLight}, nil
		},
	}

	svc := newTestService(users, &mockSessionRepo{}, nil, nil)

	user, err := svc.Register(context.Background(), "  Alice_99 ", "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, "alice_99", user.Username)
	assert.Equal(t, "alice_99", gotUsername)

	// The stored hash must verify against the original password.
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(gotHash), []byte("correct horse battery")))
}

func TestRegister_InvalidUsername(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{}, nil, nil)

	for _, username := range []string{"", "ab", "has space", "dash-ed", "über", "way_too_long_for_anyone_to_actually_type_out"} {
		_, err := svc.Register(context.Background(), username, "long enough password")
		assert.ErrorIs(t, err, domain.ErrInvalidUsername, "username %q", username)
	}
}

func TestRegister_PasswordTooShort(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{}, nil, nil)

	_, err := svc.Register(context.Background(), "alice", "short")
	assert.ErrorIs(t, err, domain.ErrPasswordTooShort)
}

func TestRegister_UsernameTaken(t *testing.T) {
	users := &mockUserRepo{
		createFn: func(context.Context, string, string) (*domain.User, error) {
			return nil, domain.ErrUsernameTaken
		},
	}

	svc := newTestService(users, &mockSessionRepo{}, nil, nil)

	_, err := svc.Register(context.Background(), "alice", "long enough password")
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)
}

// --- Login tests ---

func hashForTest(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestLogin_Success(t *testing.T) {
	users := &mockUserRepo{
		getByUsernameFn: func(_ context.Context, username string) (*domain.User, error) {
			return &domain.User{Username: username, PasswordHash: hashForTest(t, "opensesame")}, nil
		},
	}

	var gotUsername string
	var gotTTL time.Duration
	sessions := &mockSessionRepo{
		createFn: func(_ context.Context, username string, ttl time.Duration) (*domain.Session, error) {
			gotUsername = username
			gotTTL = ttl
			return &domain.Session{Token: "tok", Username: username}, nil
		},
	}

	svc := newTestService(users, sessions, nil, nil)

	session, err := svc.Login(context.Background(), "alice", "opensesame")
	require.NoError(t, err)
	assert.Equal(t, "tok", session.Token)
	assert.Equal(t, "alice", gotUsername)
	assert.Equal(t, time.Hour, gotTTL)
}

func TestLogin_NormalizesUsername(t *testing.T) {
	var lookedUp string
	users := &mockUserRepo{
		getByUsernameFn: func(_ context.Context, username string) (*domain.User, error) {
			lookedUp = username
			return nil, domain.ErrUserNotFound
		},
	}

	svc := newTestService(users, &mockSessionRepo{}, nil, nil)

	_, err := svc.Login(context.Background(), "  ALICE ", "whatever password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Equal(t, "alice", lookedUp)
}

func TestLogin_UnknownUser(t *testing.T) {
	var sessionCreated bool
	users := &mockUserRepo{
		getByUsernameFn: func(context.Context, string) (*domain.User, error) {
			return nil, domain.ErrUserNotFound
		},
	}
	sessions := &mockSessionRepo{
		createFn: func(_ context.Context, username string, _ time.Duration) (*domain.Session, error) {
			sessionCreated = true
			return &domain.Session{Username: username}, nil
		},
	}

	svc := newTestService(users, sessions, nil, nil)

	_, err := svc.Login(context.Background(), "nobody", "whatever password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.False(t, sessionCreated)
}

func TestLogin_WrongPassword(t *testing.T) {
	users := &mockUserRepo{
		getByUsernameFn: func(_ context.Context, username string) (*domain.User, error) {
			return &domain.User{Username: username, PasswordHash: hashForTest(t, "the real one")}, nil
		},
	}

	svc := newTestService(users, &mockSessionRepo{}, nil, nil)

	_, err := svc.Login(context.Background(), "alice", "not the real one")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLogin_UserStoreError(t *testing.T) {
	users := &mockUserRepo{
		getByUsernameFn: func(context.Context, string) (*domain.User, error) {
			return nil, fmt.Errorf("db down")
		},
	}

	svc := newTestService(users, &mockSessionRepo{}, nil, nil)

	_, err := svc.Login(context.Background(), "alice", "whatever password")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLogin_SessionStoreError(t *testing.T) {
	users := &mockUserRepo{
		getByUsernameFn: func(_ context.Context, username string) (*domain.User, error) {
			return &domain.User{Username: username, PasswordHash: hashForTest(t, "opensesame")}, nil
		},
	}
	sessions := &mockSessionRepo{
		createFn: func(context.Context, string, time.Duration) (*domain.Session, error) {
			return nil, fmt.Errorf("redis down")
		},
	}

	svc := newTestService(users, sessions, nil, nil)

	_, err := svc.Login(context.Background(), "alice", "opensesame")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
}

// --- Logout tests ---

func TestLogout(t *testing.T) {
	var deletedToken, invalidatedToken string

	sessions := &mockSessionRepo{
		deleteFn: func(_ context.Context, token string) error {
			deletedToken = token
			return nil
		},
	}
	invalidator := &mockInvalidator{
		invalidateCacheFn: func(_ context.Context, sessionToken string) error {
			invalidatedToken = sessionToken
			return nil
		},
	}

	svc := newTestService(&mockUserRepo{}, sessions, nil, invalidator)

	err := svc.Logout(context.Background(), "tok-123")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", deletedToken)
	assert.Equal(t, "tok-123", invalidatedToken)
}

func TestLogout_EmptyToken(t *testing.T) {
	var deleted bool
	sessions := &mockSessionRepo{
		deleteFn: func(context.Context, string) error {
			deleted = true
			return nil
		},
	}

	svc := newTestService(&mockUserRepo{}, sessions, nil, nil)

	require.NoError(t, svc.Logout(context.Background(), ""))
	assert.False(t, deleted)
}

func TestLogout_DeleteError(t *testing.T) {
	sessions := &mockSessionRepo{
		deleteFn: func(context.Context, string) error {
			return fmt.Errorf("redis down")
		},
	}

	svc := newTestService(&mockUserRepo{}, sessions, nil, nil)

	assert.Error(t, svc.Logout(context.Background(), "tok-123"))
}

func TestLogout_InvalidationFailureIsNotFatal(t *testing.T) {
	invalidator := &mockInvalidator{
		invalidateCacheFn: func(context.Context, string) error {
			return fmt.Errorf("redis down")
		},
	}

	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{}, nil, invalidator)

	assert.NoError(t, svc.Logout(context.Background(), "tok-123"))
}

// --- CurrentViewer tests ---

func TestCurrentViewer_Delegates(t *testing.T) {
	want := &domain.ViewerConfig{Session: &domain.Session{Token: "tok", Username: "alice"}}

	viewers := &mockViewerSource{
		getViewerConfigFn: func(_ context.Context, sessionToken string) (*domain.ViewerConfig, error) {
			assert.Equal(t, "tok", sessionToken)
			return want, nil
		},
	}

	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{}, viewers, nil)

	got, err := svc.CurrentViewer(context.Background(), "tok")
	require.NoError(t, err)
	assert.Same(t, want, got)
}

// --- SetTheme tests ---

func TestSetTheme_Success(t *testing.T) {
	userID := uuid.New()
	var gotTheme domain.Theme
	var invalidatedToken string

	users := &mockUserRepo{
		updateThemeFn: func(_ context.Context, id uuid.UUID, theme domain.Theme) error {
			assert.Equal(t, userID, id)
			gotTheme = theme
			return nil
		},
	}
	invalidator := &mockInvalidator{
		invalidateCacheFn: func(_ context.Context, sessionToken string) error {
			invalidatedToken = sessionToken
			return nil
		},
	}

	svc := newTestService(users, &mockSessionRepo{}, nil, invalidator)

	theme, err := svc.SetTheme(context.Background(), userID, "tok-123", "dark")
	require.NoError(t, err)
	assert.Equal(t, domain.ThemeDark, theme)
	assert.Equal(t, domain.ThemeDark, gotTheme)
	assert.Equal(t, "tok-123", invalidatedToken)
}

func TestSetTheme_InvalidTheme(t *testing.T) {
	var updated bool
	users := &mockUserRepo{
		updateThemeFn: func(context.Context, uuid.UUID, domain.Theme) error {
			updated = true
			return nil
		},
	}

	svc := newTestService(users, &mockSessionRepo{}, nil, nil)

	for _, theme := range []string{"", "blue", "DARK", "Light"} {
		_, err := svc.SetTheme(context.Background(), uuid.New(), "tok", theme)
		assert.ErrorIs(t, err, domain.ErrInvalidTheme, "theme %q", theme)
	}
	assert.False(t, updated)
}

func TestSetTheme_UnknownUser(t *testing.T) {
	users := &mockUserRepo{
		updateThemeFn: func(context.Context, uuid.UUID, domain.Theme) error {
			return domain.ErrUserNotFound
		},
	}

	svc := newTestService(users, &mockSessionRepo{}, nil, nil)

	_, err := svc.SetTheme(context.Background(), uuid.New(), "tok", "dark")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestSetTheme_InvalidationFailureIsNotFatal(t *testing.T) {
	users := &mockUserRepo{
		updateThemeFn: func(context.Context, uuid.UUID, domain.Theme) error {
			return nil
		},
	}
	invalidator := &mockInvalidator{
		invalidateCacheFn: func(context.Context, string) error {
			return fmt.Errorf("redis down")
		},
	}

	svc := newTestService(users, &mockSessionRepo{}, nil, invalidator)

	theme, err := svc.SetTheme(context.Background(), uuid.New(), "tok", "light")
	require.NoError(t, err)
	assert.Equal(t, domain.ThemeLight, theme)
}

// --- GetUserByID tests ---

func TestGetUserByID(t *testing.T) {
	userID := uuid.New()
	want := &domain.User{ID: userID, Username: "alice"}

	users := &mockUserRepo{
		getByIDFn: func(_ context.Context, id uuid.UUID) (*domain.User, error) {
			assert.Equal(t, userID, id)
			return want, nil
		},
	}

	svc := newTestService(users, &mockSessionRepo{}, nil, nil)

	got, err := svc.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	assert.Same(t, want, got)
}
