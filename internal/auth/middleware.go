package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const operatorKey = "operator"

// Middleware validates the bearer token and stores the operator
// identity on the echo context.
func Middleware(svc *Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
			}

			subject, err := svc.Validate(parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(operatorKey, subject)
			return next(c)
		}
	}
}

// OperatorFromContext returns the authenticated operator identity.
func OperatorFromContext(c echo.Context) (string, error) {
	subject, ok := c.Get(operatorKey).(string)
	if !ok || subject == "" {
		return "", errors.New("operator not found in context")
	}
	return subject, nil
}
