package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/benefits-cafeteria/internal/service"
)

// UserAPI is the account management used by UserHandler.
type UserAPI interface {
	List(ctx context.Context) ([]service.UserView, error)
	Get(ctx context.Context, id uuid.UUID) (service.UserView, error)
	Add(ctx context.Context, in service.UserInput) (service.UserView, error)
	Update(ctx context.Context, id uuid.UUID, in service.UserInput) (service.UserView, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// UserHandler serves the admin user endpoints.
type UserHandler struct {
	Users UserAPI
}

func NewUserHandler(users UserAPI) *UserHandler { return &UserHandler{Users: users} }

type userReq struct {
	Email             string  `json:"email"`
	FullName          *string `json:"full_name"`
	PlaceOfEmployment *string `json:"place_of_employment"`
	Position          *string `json:"position"`
	EmploymentDate    *string `json:"employment_date"` // YYYY-MM-DD
	Administration    bool    `json:"administration"`
}

func (r userReq) input() (service.UserInput, bool) {
	in := service.UserInput{
		Email:             r.Email,
		FullName:          r.FullName,
		PlaceOfEmployment: r.PlaceOfEmployment,
		Position:          r.Position,
		Administration:    r.Administration,
	}
	if r.EmploymentDate != nil && *r.EmploymentDate != "" {
		d, err := time.Parse("2006-01-02", *r.EmploymentDate)
		if err != nil {
			return service.UserInput{}, false
		}
		in.EmploymentDate = &d
	}
	return in, true
}

func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	users, err := h.Users.List(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Add(c echo.Context) error {
	var req userReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	in, ok := req.input()
	if !ok {
		return badRequest(c, "employment_date must be YYYY-MM-DD")
	}

	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	v, err := h.Users.Add(ctx, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *UserHandler) Get(c echo.Context) error {
	id, ok := paramUUID(c, "uuid")
	if !ok {
		return badRequest(c, "invalid uuid")
	}

	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	v, err := h.Users.Get(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Update replaces profile fields and the admin flag.  The email in the
// body is ignored.
func (h *UserHandler) Update(c echo.Context) error {
	id, ok := paramUUID(c, "uuid")
	if !ok {
		return badRequest(c, "invalid uuid")
	}
	var req userReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	in, ok := req.input()
	if !ok {
		return badRequest(c, "employment_date must be YYYY-MM-DD")
	}

	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	v, err := h.Users.Update(ctx, id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *UserHandler) Deactivate(c echo.Context) error {
	id, ok := paramUUID(c, "uuid")
	if !ok {
		return badRequest(c, "invalid uuid")
	}

	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	if err := h.Users.Deactivate(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
