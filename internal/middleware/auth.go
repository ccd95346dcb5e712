package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/support_desk/internal/models"
	"github.com/Skotchmaster/support_desk/internal/service"
)

const userContextKey = "current_user"

type Auth struct {
	Svc *service.AuthService
}

func NewAuth(svc *service.AuthService) *Auth {
	return &Auth{Svc: svc}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}

// RequireUser authenticates the access token and stashes the resolved user
// in the request context. Every protected operation routes through here.
func (m *Auth) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := bearerToken(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		user, err := m.Svc.Authenticate(c.Request().Context(), raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or revoked token")
		}

		c.Set(userContextKey, user)
		return next(c)
	}
}

// RequireCSR applies the capability check once, at the boundary; handlers
// never re-check roles inline.
func (m *Auth) RequireCSR(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := CurrentUser(c)
		if user == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}
		if !user.IsCSR() {
			return echo.NewHTTPError(http.StatusForbidden, "CSR privileges required")
		}
		return next(c)
	}
}

func CurrentUser(c echo.Context) *models.User {
	if u, ok := c.Get(userContextKey).(*models.User); ok {
		return u
	}
	return nil
}
