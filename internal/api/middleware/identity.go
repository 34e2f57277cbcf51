package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// RequireIdentity rejects requests that reached it without an authenticated
// user id. Role checks stay in the use cases, which re-read roles from the store.
func RequireIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id, _ := c.Get(ContextKeyUserID).(string); id == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, domain.ErrUnauthenticated.Error()).
					SetInternal(domain.ErrUnauthenticated)
			}
			return next(c)
		}
	}
}
