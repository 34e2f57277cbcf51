package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/core/service"
	"github.com/99minutos/identity-service/internal/pkg/metrics"
)

// ContextKeyUserID is the echo context key holding the authenticated user id.
const ContextKeyUserID = "user_id"

// Auth resolves an optional bearer token into the caller's user id.
// Requests without a bearer credential pass through anonymously; whether a
// route needs an identity is decided by the handler. A bearer credential that
// fails validation stops the request with 401.
func Auth(validator ports.TokenValidator, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return next(c)
			}

			userID, err := validator.Validate(token)
			if err != nil {
				reason := service.ValidationFailureReason(err)
				metrics.TokenValidationFailuresTotal.WithLabelValues(reason).Inc()
				log.Debug().
					Str("reason", reason).
					Str("path", c.Path()).
					Msg("bearer token rejected")
				if !errors.Is(err, domain.ErrInvalidToken) {
					err = domain.ErrInvalidToken
				}
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error()).SetInternal(err)
			}

			c.Set(ContextKeyUserID, userID)
			return next(c)
		}
	}
}

// bearerToken extracts the credential of a "Bearer <token>" header.
// The scheme match is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
