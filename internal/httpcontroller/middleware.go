package httpcontroller

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/respireai/respire-web/internal/flow"
)

// Cookie carrying the upload flow key. Separate from the session cookie
// so that logging out does not orphan an in-flight analysis.
const flowCookieName = "respireai-flow"

// AuthMiddleware guards routes that require a logged-in session. Page
// requests are redirected to the login page; API requests get 401 JSON.
func (s *Server) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		state, err := s.Store.Get(c)
		if err != nil {
			s.Debug("session read in auth guard: %v", err)
		}
		if state == nil || !state.LoggedIn {
			if strings.HasPrefix(c.Request().URL.Path, "/api/") {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "authentication required",
				})
			}
			return c.Redirect(http.StatusFound, "/login")
		}
		return next(c)
	}
}

// sessionFlow returns the upload flow bound to this browser, minting the
// flow cookie on first use.
func (s *Server) sessionFlow(c echo.Context) *flow.UploadFlow {
	key := ""
	if cookie, err := c.Cookie(flowCookieName); err == nil && cookie.Value != "" {
		key = cookie.Value
	}
	if key == "" {
		key = uuid.NewString()
		c.SetCookie(&http.Cookie{
			Name:     flowCookieName,
			Value:    key,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s.Flows.Get(key)
}
