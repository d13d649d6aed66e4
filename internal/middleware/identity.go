package middleware

// identity.go resolves the authenticated caller.  LoadUser runs after
// JWTAuth and replaces the token claims with the stored user record, so a
// deactivated account or a demoted admin loses access immediately even
// while an old token is still valid.

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/benefits-cafeteria/internal/model"
	"github.com/iliyamo/benefits-cafeteria/internal/repository"
)

// UserGetter loads a user by id.
type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
}

// LoadUser fetches the caller's user record.  Unknown users get 401 and
// deactivated users get 403.
func LoadUser(users UserGetter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := UserID(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			u, err := users.GetByID(c.Request().Context(), id)
			if errors.Is(err, repository.ErrUserNotFound) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load user"})
			}
			if !u.Active {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "account is deactivated"})
			}
			c.Set(ctxUser, u)
			c.Set(ctxRole, u.Role)
			return next(c)
		}
	}
}

// UserID returns the subject stored by JWTAuth.
func UserID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(ctxUserID).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// CurrentUser returns the user stored by LoadUser.
func CurrentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get(ctxUser).(model.User)
	return u, ok
}

// rateKeyUser identifies the caller for rate limiting, "anon" when the
// request is unauthenticated.
func rateKeyUser(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return id.String()
	}
	return "anon"
}
