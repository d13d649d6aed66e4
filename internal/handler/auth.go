package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/benefits-cafeteria/internal/model"
	"github.com/iliyamo/benefits-cafeteria/internal/service"
	"github.com/iliyamo/benefits-cafeteria/internal/utils"
)

// AuthAPI is the login flow used by AuthHandler.
type AuthAPI interface {
	RequestLogin(ctx context.Context, email string) error
	Authorize(ctx context.Context, rawToken string) (utils.AccessToken, model.User, error)
}

// ProfileAPI serves the caller's own profile.
type ProfileAPI interface {
	Me(ctx context.Context, id uuid.UUID) (service.UserView, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth     AuthAPI
	Profiles ProfileAPI
}

func NewAuthHandler(auth AuthAPI, profiles ProfileAPI) *AuthHandler {
	return &AuthHandler{Auth: auth, Profiles: profiles}
}

// ----- DTOs -----

type loginReq struct {
	Email string `json:"email"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID    uuid.UUID  `json:"id"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

type authResp struct {
	User   userPart  `json:"user"`
	Access tokenPart `json:"access"`
}

// Login emails a one-time login link.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return badRequest(c, "email required")
	}

	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	if err := h.Auth.RequestLogin(ctx, req.Email); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": "login link sent to " + req.Email})
}

// Authorize exchanges a login link token for an access token.
func (h *AuthHandler) Authorize(c echo.Context) error {
	raw := c.Param("token")
	if raw == "" {
		return badRequest(c, "token required")
	}

	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	access, u, err := h.Auth.Authorize(ctx, raw)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, authResp{
		User:   userPart{ID: u.ID, Email: u.Email, Role: u.Role},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	v, err := h.Profiles.Me(ctx, caller(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}
