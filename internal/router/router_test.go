package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/benefits-cafeteria/internal/handler"
	"github.com/iliyamo/benefits-cafeteria/internal/model"
	"github.com/iliyamo/benefits-cafeteria/internal/repository"
	"github.com/iliyamo/benefits-cafeteria/internal/utils"
)

const secret = "router-secret"

type users map[uuid.UUID]model.User

func (u users) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	if v, ok := u[id]; ok {
		return v, nil
	}
	return model.User{}, repository.ErrUserNotFound
}

func newServer(u users) *echo.Echo {
	e := echo.New()
	guard := Guard{Secret: secret, Users: u}
	requests := handler.NewRequestHandler(nil)
	RegisterRoutes(e, nil)
	RegisterAdminUsers(e, handler.NewUserHandler(nil), guard)
	RegisterBenefits(e, handler.NewBenefitHandler(nil), requests, guard)
	RegisterRequests(e, requests, guard)
	RegisterAnalytics(e, handler.NewAnalyticsHandler(nil, nil), guard)
	return e
}

func call(t *testing.T, e *echo.Echo, method, path string, u *model.User) int {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if u != nil {
		tok, err := utils.NewAccessToken(secret, u.ID, u.Role, 5, time.Now())
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestAdminRoutesRejectEmployees(t *testing.T) {
	emp := model.User{ID: uuid.New(), Email: "ann@corp.io", Active: true, Role: model.RoleEmployee}
	e := newServer(users{emp.ID: emp})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/admin/users"},
		{http.MethodPost, "/benefits/new"},
		{http.MethodGet, "/benefits/1"},
		{http.MethodDelete, "/benefits/delete/1"},
		{http.MethodGet, "/admin/requests"},
		{http.MethodPut, "/admin/requests/1/status"},
		{http.MethodGet, "/analytics"},
		{http.MethodPut, "/analytics/poll-status/set"},
		{http.MethodGet, "/analytics/export"},
	} {
		assert.Equal(t, http.StatusForbidden, call(t, e, tc.method, tc.path, &emp), "%s %s", tc.method, tc.path)
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	e := newServer(users{})

	assert.Equal(t, http.StatusUnauthorized, call(t, e, http.MethodGet, "/benefits/all", nil))
	assert.Equal(t, http.StatusUnauthorized, call(t, e, http.MethodGet, "/requests/my", nil))
	assert.Equal(t, http.StatusUnauthorized, call(t, e, http.MethodPost, "/analytics/poll", nil))
	assert.Equal(t, http.StatusOK, call(t, e, http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, call(t, e, http.MethodGet, "/healthz", nil))
}
