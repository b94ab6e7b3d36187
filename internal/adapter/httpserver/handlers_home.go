package httpserver

import (
	"github.com/labstack/echo/v4"
	apperrors "github.com/wadahkode/beranda/internal/errors"
)

// handleHome serves the root page. Signed-in viewers get the home page,
// everyone else the landing page; both carry the viewer's theme. The split
// is decided here from the resolved viewer config, not by redirects.
func (s *Server) handleHome(c echo.Context) error {
	ctx := c.Request().Context()

	viewer, err := s.app.CurrentViewer(ctx, s.sessionToken(c))
	if err != nil {
		return apperrors.InternalError("failed to resolve viewer", err)
	}

	if !viewer.SignedIn() {
		data := map[string]any{
			"Theme": string(viewer.Theme()),
		}
		return s.renderTemplate(c, "landing.html", data)
	}

	data := map[string]any{
		"Username":  viewer.Session.Username,
		"Theme":     string(viewer.Theme()),
		"CSRFToken": c.Get("csrf"),
	}
	return s.renderTemplate(c, "home.html", data)
}
