package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/wadahkode/beranda/internal/domain"
	apperrors "github.com/wadahkode/beranda/internal/errors"
)

func (s *Server) registerSettingsRoutes(csrfMiddleware echo.MiddlewareFunc) {
	s.echo.GET("/settings", s.handleSettingsPage, s.requireAuth, csrfMiddleware)
	s.echo.POST("/settings/theme", s.handleSetTheme, s.requireAuth, csrfMiddleware)
}

func (s *Server) handleSettingsPage(c echo.Context) error {
	ctx := c.Request().Context()

	viewer, ok := c.Get(ctxKeyViewer).(*domain.ViewerConfig)
	if !ok || viewer.User == nil {
		// Signed in but the account is gone; force a clean sign-in.
		s.clearSessionCookie(c)
		return c.Redirect(http.StatusFound, "/auth/login")
	}

	// The cached profile may lag a concurrent update; settings show the
	// stored row.
	user, err := s.app.GetUserByID(ctx, viewer.User.ID)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.clearSessionCookie(c)
		return c.Redirect(http.StatusFound, "/auth/login")
	}
	if err != nil {
		return apperrors.InternalError("failed to load account", err)
	}

	data := map[string]any{
		"Username":  user.Username,
		"Theme":     string(user.Theme),
		"CreatedAt": user.CreatedAt.Format("2 January 2006"),
		"CSRFToken": c.Get("csrf"),
	}
	return s.renderTemplate(c, "settings.html", data)
}

func (s *Server) handleSetTheme(c echo.Context) error {
	ctx := c.Request().Context()

	viewer, ok := c.Get(ctxKeyViewer).(*domain.ViewerConfig)
	if !ok || viewer.User == nil {
		s.clearSessionCookie(c)
		return c.Redirect(http.StatusFound, "/auth/login")
	}
	token, _ := c.Get(ctxKeySessionToken).(string)

	theme := strings.TrimSpace(c.FormValue("theme"))

	if _, err := s.app.SetTheme(ctx, viewer.User.ID, token, theme); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidTheme):
			return apperrors.ValidationError("theme must be light or dark").WithField("theme", theme)
		case errors.Is(err, domain.ErrUserNotFound):
			return apperrors.NotFoundError("account not found")
		default:
			return apperrors.InternalError("failed to update theme", err)
		}
	}

	if err := c.Redirect(http.StatusFound, "/settings"); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}
