package guard

import (
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// Middleware enforces the guard on every request.
func (g *Guard) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			switch g.Authorize(path, FromRequest(c.Request())) {
			case Unauthorized:
				g.logger.WithFields(log.Fields{"path": path, "decision": Unauthorized.String()}).Debug("guard.denied")
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			case RedirectToSignin:
				g.logger.WithFields(log.Fields{"path": path, "decision": RedirectToSignin.String()}).Debug("guard.denied")
				return c.Redirect(http.StatusTemporaryRedirect, g.cfg.SigninPath)
			}
			return next(c)
		}
	}
}
