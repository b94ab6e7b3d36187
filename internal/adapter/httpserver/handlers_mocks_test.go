package httpserver

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/wadahkode/beranda/internal/domain"
	apperrors "github.com/wadahkode/beranda/internal/errors"
	"github.com/wadahkode/beranda/internal/platform/config"
)

// --- Mock implementations ---

type mockApp struct {
	registerFn      func(ctx context.Context, username, password string) (*domain.User, error)
	loginFn         func(ctx context.Context, username, password string) (*domain.Session, error)
	logoutFn        func(ctx context.Context, sessionToken string) error
	currentViewerFn func(ctx context.Context, sessionToken string) (*domain.ViewerConfig, error)
	setThemeFn      func(ctx context.Context, userID uuid.UUID, sessionToken, theme string) (domain.Theme, error)
	getUserByIDFn   func(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

func (m *mockApp) Register(ctx context.Context, username, password string) (*domain.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, username, password)
	}
	return nil, errors.New("not implemented")
}

func (m *mockApp) Login(ctx context.Context, username, password string) (*domain.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	return nil, errors.New("not implemented")
}

func (m *mockApp) Logout(ctx context.Context, sessionToken string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionToken)
	}
	return nil
}

func (m *mockApp) CurrentViewer(ctx context.Context, sessionToken string) (*domain.ViewerConfig, error) {
	if m.currentViewerFn != nil {
		return m.currentViewerFn(ctx, sessionToken)
	}
	return &domain.ViewerConfig{}, nil
}

func (m *mockApp) SetTheme(ctx context.Context, userID uuid.UUID, sessionToken, theme string) (domain.Theme, error) {
	if m.setThemeFn != nil {
		return m.setThemeFn(ctx, userID, sessionToken, theme)
	}
	return domain.ParseTheme(theme), nil
}

func (m *mockApp) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(ctx, userID)
	}
	return nil, errors.New("not implemented")
}

// --- Fixtures ---

func signedInViewer(username string, theme domain.Theme) *domain.ViewerConfig {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.ViewerConfig{
		Session: &domain.Session{
			Token:     "tok-fixture",
			Username:  username,
			CreatedAt: now,
			ExpiresAt: now.Add(time.Hour),
		},
		User: &domain.Profile{
			ID:        uuid.New(),
			Username:  username,
			Theme:     theme,
			CreatedAt: now,
		},
	}
}

func sessionOnlyViewer(username string) *domain.ViewerConfig {
	v := signedInViewer(username, domain.ThemeLight)
	v.User = nil
	return v
}

// --- Test helpers ---

func newTestServer(t *testing.T, app appService, opts ...func(*Server)) *Server {
	t.Helper()

	tmpl := template.Must(template.New("landing.html").Parse(`Landing theme-{{.Theme}}`))
	template.Must(tmpl.New("home.html").Parse(`Home {{.Username}} theme-{{.Theme}}`))
	template.Must(tmpl.New("login.html").Parse(`Login{{if .Error}} error: {{.Error}}{{end}}`))
	template.Must(tmpl.New("register.html").Parse(`Register{{if .Error}} error: {{.Error}}{{end}}`))
	template.Must(tmpl.New("settings.html").Parse(`Settings {{.Username}} theme-{{.Theme}} since {{.CreatedAt}}`))

	store := sessions.NewCookieStore([]byte("test-secret-key-32-bytes-long!!!"))
	store.Options = &sessions.Options{
		Path:   "/",
		MaxAge: 3600,
	}

	e := echo.New()

	srv := &Server{
		echo:         e,
		config:       &config.Config{AppEnv: "test", Port: "8080", SessionMaxAge: time.Hour},
		app:          app,
		sessionStore: store,
		templates:    tmpl,
		startTime:    time.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()

	return srv
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

// callHandler wraps a handler with the error middleware, matching production
// behavior for error responses.
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return apperrors.Middleware()(handler)(c)
}

func setSessionToken(t *testing.T, srv *Server, req *http.Request, rec *httptest.ResponseRecorder, token string) {
	t.Helper()
	session, err := srv.sessionStore.Get(req, sessionName)
	require.NoError(t, err)
	session.Values[sessionKeyToken] = token
	require.NoError(t, session.Save(req, rec))
}

// findCookie returns the named cookie from the recorded response, or nil.
func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}
