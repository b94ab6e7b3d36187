package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/wadahkode/beranda/internal/domain"
	apperrors "github.com/wadahkode/beranda/internal/errors"
)

func (s *Server) registerAuthRoutes(csrfMiddleware, rateLimiter echo.MiddlewareFunc) {
	s.echo.GET("/auth/login", s.handleLoginPage, rateLimiter, csrfMiddleware)
	s.echo.POST("/auth/login", s.handleLogin, rateLimiter, csrfMiddleware)
	s.echo.GET("/auth/register", s.handleRegisterPage, rateLimiter, csrfMiddleware)
	s.echo.POST("/auth/register", s.handleRegister, rateLimiter, csrfMiddleware)
	s.echo.POST("/auth/logout", s.handleLogout, rateLimiter, s.requireAuth, csrfMiddleware)
}

// requireAuth resolves the viewer for the request's session token and
// rejects anonymous requests. A cookie referencing a revoked or expired
// session is cleared before redirecting, so the browser stops sending it.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := s.sessionToken(c)
		if token == "" {
			return c.Redirect(http.StatusFound, "/auth/login")
		}

		viewer, err := s.app.CurrentViewer(c.Request().Context(), token)
		if err != nil {
			return apperrors.InternalError("failed to resolve viewer", err)
		}
		if !viewer.SignedIn() {
			s.clearSessionCookie(c)
			return c.Redirect(http.StatusFound, "/auth/login")
		}

		c.Set(ctxKeyViewer, viewer)
		c.Set(ctxKeySessionToken, token)
		c.Set("username", viewer.Session.Username)
		return next(c)
	}
}

func (s *Server) handleLoginPage(c echo.Context) error {
	if s.sessionToken(c) != "" {
		viewer, err := s.app.CurrentViewer(c.Request().Context(), s.sessionToken(c))
		if err == nil && viewer.SignedIn() {
			if err := c.Redirect(http.StatusFound, "/"); err != nil {
				return fmt.Errorf("failed to redirect: %w", err)
			}
			return nil
		}
	}
	return s.renderLoginPage(c, "")
}

func (s *Server) handleLogin(c echo.Context) error {
	ctx := c.Request().Context()

	username := c.FormValue("username")
	password := c.FormValue("password")

	session, err := s.app.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return s.renderLoginPage(c, "Invalid username or password.")
		}
		return apperrors.InternalError("failed to sign in", err)
	}

	if err := s.issueSessionCookie(c, session.Token); err != nil {
		return apperrors.InternalError("failed to save session", err)
	}

	if err := c.Redirect(http.StatusFound, "/"); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}

func (s *Server) handleRegisterPage(c echo.Context) error {
	return s.renderRegisterPage(c, "")
}

func (s *Server) handleRegister(c echo.Context) error {
	ctx := c.Request().Context()

	username := c.FormValue("username")
	password := c.FormValue("password")

	user, err := s.app.Register(ctx, username, password)
	switch {
	case errors.Is(err, domain.ErrInvalidUsername):
		return s.renderRegisterPage(c, "Usernames are 3-32 characters of a-z, 0-9 or underscore.")
	case errors.Is(err, domain.ErrPasswordTooShort):
		return s.renderRegisterPage(c, "Passwords need at least 8 characters.")
	case errors.Is(err, domain.ErrUsernameTaken):
		return s.renderRegisterPage(c, "That username is already taken.")
	case err != nil:
		return apperrors.InternalError("failed to create account", err)
	}

	// Sign the fresh account in right away.
	session, err := s.app.Login(ctx, user.Username, password)
	if err != nil {
		slog.Error("Login after registration failed", "username", user.Username, "error", err)
		if err := c.Redirect(http.StatusFound, "/auth/login"); err != nil {
			return fmt.Errorf("failed to redirect: %w", err)
		}
		return nil
	}

	if err := s.issueSessionCookie(c, session.Token); err != nil {
		return apperrors.InternalError("failed to save session", err)
	}

	if err := c.Redirect(http.StatusFound, "/"); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}

func (s *Server) handleLogout(c echo.Context) error {
	ctx := c.Request().Context()
	token, _ := c.Get(ctxKeySessionToken).(string)

	// Clear the cookie even if server-side revocation fails; the Redis
	// record expires on its own TTL.
	if err := s.app.Logout(ctx, token); err != nil {
		slog.Error("Failed to revoke session during logout", "error", err)
	}

	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		session, err = s.sessionStore.New(c.Request(), sessionName)
		if err != nil {
			return apperrors.InternalError("failed to create new session during logout", err)
		}
	}
	session.Options.MaxAge = -1
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save logout session", err)
	}

	slog.InfoContext(ctx, "Viewer logged out")

	if err := c.Redirect(http.StatusFound, "/"); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}

// issueSessionCookie replaces any pre-auth cookie session with a fresh one
// carrying the server-side session token, so a cookie fixated before login
// does not survive authentication.
func (s *Server) issueSessionCookie(c echo.Context, token string) error {
	old, err := s.sessionStore.Get(c.Request(), sessionName)
	if err == nil {
		old.Options.MaxAge = -1
		if err := old.Save(c.Request(), c.Response().Writer); err != nil {
			return fmt.Errorf("failed to drop pre-auth session: %w", err)
		}
	}

	session, err := s.sessionStore.New(c.Request(), sessionName)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	session.Values[sessionKeyToken] = token
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *Server) clearSessionCookie(c echo.Context) {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return
	}
	session.Options.MaxAge = -1
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		slog.Error("Failed to clear session cookie", "error", err)
	}
}

func (s *Server) renderLoginPage(c echo.Context, errorMessage string) error {
	data := map[string]any{
		"CSRFToken": c.Get("csrf"),
		"Error":     errorMessage,
	}
	return s.renderTemplate(c, "login.html", data)
}

func (s *Server) renderRegisterPage(c echo.Context, errorMessage string) error {
	data := map[string]any{
		"CSRFToken": c.Get("csrf"),
		"Error":     errorMessage,
	}
	return s.renderTemplate(c, "register.html", data)
}
