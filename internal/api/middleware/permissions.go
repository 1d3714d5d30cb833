package middleware

import (
	"github.com/labstack/echo/v4"

	"sitepilot/internal/access"
	"sitepilot/internal/apperr"
	"sitepilot/internal/permissions"
)

// RequireCapabilities rejects callers missing any of caps before the handler runs.
func RequireCapabilities(caps ...permissions.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := access.Require(GetPrincipal(c), caps...); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// RequireAdmin admits only administrators.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !GetPrincipal(c).IsAdmin() {
				return apperr.Forbidden()
			}
			return next(c)
		}
	}
}
