package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/benefits-cafeteria/internal/model"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func strPtr(s string) *string { return &s }

func TestUserRepo_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "ann@corp.io", false, true, "employee").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_info").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u := &model.User{Email: "  Ann@Corp.io ", Active: true, Role: model.RoleEmployee}
	err := repo.Create(context.Background(), u, model.UserInfo{FullName: strPtr("Ann")})

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.Equal(t, "ann@corp.io", u.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Create_DuplicateEmail(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &model.User{Email: "a@b.c", Role: model.RoleEmployee}, model.UserInfo{})

	assert.ErrorIs(t, err, ErrEmailExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetProfile(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepo(db)
	id := uuid.New()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	hired := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "email", "email_verified", "is_active", "role", "created_at",
		"full_name", "place_of_employment", "position", "employment_date"}).
		AddRow(id.String(), "ann@corp.io", true, true, "employee", created, "Ann", nil, nil, hired)
	mock.ExpectQuery("FROM users u").WithArgs(id.String()).WillReturnRows(rows)

	p, err := repo.GetProfile(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, id, p.User.ID)
	assert.Equal(t, model.RoleEmployee, p.User.Role)
	require.NotNil(t, p.Info.FullName)
	assert.Equal(t, "Ann", *p.Info.FullName)
	assert.Nil(t, p.Info.Position)
	require.NotNil(t, p.Info.EmploymentDate)
	assert.True(t, hired.Equal(*p.Info.EmploymentDate))
}

func TestUserRepo_GetProfile_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery("FROM users u").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetProfile(context.Background(), uuid.New())

	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepo_Deactivate_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec("UPDATE users SET is_active=FALSE").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Deactivate(context.Background(), uuid.New())

	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepo_CountEmployees(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(12))

	n, err := repo.CountEmployees(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 12, n)
}

func TestTokenRepo_Consume(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTokenRepo(db)
	uid := uuid.New()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, expires_at FROM auth_tokens").
		WithArgs("hash").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at"}).AddRow(uid.String(), now.Add(time.Minute)))
	mock.ExpectExec("DELETE FROM auth_tokens").WithArgs("hash").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := repo.Consume(context.Background(), "hash", now)

	require.NoError(t, err)
	assert.Equal(t, uid, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_Consume_ExpiredIsDeletedAndRejected(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTokenRepo(db)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, expires_at FROM auth_tokens").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at"}).AddRow(uuid.NewString(), now.Add(-time.Second)))
	mock.ExpectExec("DELETE FROM auth_tokens").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := repo.Consume(context.Background(), "hash", now)

	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_Consume_Unknown(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTokenRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, expires_at FROM auth_tokens").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Consume(context.Background(), "nope", time.Now())

	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var benefitCols = []string{"id", "name", "card_name", "text", "categories", "cover_path", "need_confirmation", "need_files"}

func TestBenefitRepo_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewBenefitRepo(db)

	mock.ExpectQuery("FROM benefits WHERE id").WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(benefitCols).
			AddRow(3, "gym", "Gym pass", nil, []byte("[1,3]"), "c.png", true, false))

	b, err := repo.GetByID(context.Background(), 3)

	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, b.Categories)
	assert.Equal(t, "Gym pass", b.DisplayName())
	assert.Nil(t, b.Text)
	require.NotNil(t, b.CoverPath)
	assert.Equal(t, "c.png", *b.CoverPath)
	assert.True(t, b.NeedConfirmation)
}

func TestBenefitRepo_GetByID_NullCategories(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewBenefitRepo(db)

	mock.ExpectQuery("FROM benefits WHERE id").
		WillReturnRows(sqlmock.NewRows(benefitCols).AddRow(1, "x", nil, nil, nil, nil, false, false))

	b, err := repo.GetByID(context.Background(), 1)

	require.NoError(t, err)
	assert.Empty(t, b.Categories)
}

func TestBenefitRepo_GetByID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewBenefitRepo(db)

	mock.ExpectQuery("FROM benefits WHERE id").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 9)

	assert.ErrorIs(t, err, ErrBenefitNotFound)
}

func TestBenefitRepo_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewBenefitRepo(db)

	mock.ExpectExec("INSERT INTO benefits").
		WithArgs("gym", nil, nil, "[1,2]", nil, true, true).
		WillReturnResult(sqlmock.NewResult(17, 1))

	b := &model.Benefit{Name: "gym", Categories: []int{1, 2}, NeedConfirmation: true, NeedFiles: true}
	require.NoError(t, repo.Create(context.Background(), b))

	assert.Equal(t, int64(17), b.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBenefitRepo_Update_UnchangedRowStillExists(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewBenefitRepo(db)

	mock.ExpectExec("UPDATE benefits SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM benefits").WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	err := repo.Update(context.Background(), model.Benefit{ID: 4, Name: "same"})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBenefitRepo_Update_Missing(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewBenefitRepo(db)

	mock.ExpectExec("UPDATE benefits SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM benefits").WillReturnError(sql.ErrNoRows)

	err := repo.Update(context.Background(), model.Benefit{ID: 4, Name: "gone"})

	assert.ErrorIs(t, err, ErrBenefitNotFound)
}

func TestBenefitRepo_ExistingIDs(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewBenefitRepo(db)

	mock.ExpectQuery(`SELECT id FROM benefits WHERE id IN \(\?,\?,\?\)`).
		WithArgs(int64(1), int64(2), int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))

	found, err := repo.ExistingIDs(context.Background(), []int64{1, 2, 99})

	require.NoError(t, err)
	assert.True(t, found[1])
	assert.True(t, found[2])
	assert.False(t, found[99])
}

func TestCategoryRepo_List(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCategoryRepo(db)

	mock.ExpectQuery("FROM categories").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "availability_days"}).
			AddRow(1, "everyone", nil).
			AddRow(2, "one year", 365))

	cats, err := repo.List(context.Background())

	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Nil(t, cats[0].AvailabilityDays)
	require.NotNil(t, cats[1].AvailabilityDays)
	assert.Equal(t, 365, *cats[1].AvailabilityDays)
}

var requestCols = []string{"id", "user_id", "benefit_id", "created_at", "files", "status"}

func TestRequestRepo_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewRequestRepo(db)
	uid := uuid.New()

	mock.ExpectExec("INSERT INTO user_benefit_requests").
		WithArgs(uid.String(), int64(5), sqlmock.AnyArg(), `["a.png","b.png"]`, 1).
		WillReturnResult(sqlmock.NewResult(7, 1))

	req := &model.BenefitRequest{UserID: uid, BenefitID: 5, CreatedAt: time.Now(), Files: []string{"a.png", "b.png"}}
	require.NoError(t, repo.Create(context.Background(), req))

	assert.Equal(t, int64(7), req.ID)
	assert.Equal(t, model.StatusPending, req.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepo_Transition(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewRequestRepo(db)
	uid := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(requestCols).AddRow(7, uid.String(), 5, time.Now(), nil, 1))
	mock.ExpectExec("UPDATE user_benefit_requests SET status").WithArgs(2, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req, err := repo.Transition(context.Background(), 7, model.StatusApproved)

	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, req.Status)
	assert.Equal(t, uid, req.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepo_Transition_TerminalIsConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewRequestRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(requestCols).AddRow(7, uuid.NewString(), 5, time.Now(), nil, 3))
	mock.ExpectRollback()

	_, err := repo.Transition(context.Background(), 7, model.StatusApproved)

	assert.True(t, errors.Is(err, ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepo_Transition_Missing(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewRequestRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Transition(context.Background(), 7, model.StatusApproved)

	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestRequestRepo_ListAll_Order(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewRequestRepo(db)
	cols := append(append([]string{}, requestCols...), "benefit_name", "full_name")

	mock.ExpectQuery("ORDER BY r.created_at DESC").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(2, uuid.NewString(), 5, time.Now(), []byte(`["x.png"]`), 2, "Gym", "Ann").
			AddRow(1, uuid.NewString(), 5, time.Now(), nil, 1, "Gym", nil))

	rows, err := repo.ListAll(context.Background(), true)

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"x.png"}, rows[0].Request.Files)
	require.NotNil(t, rows[0].UserName)
	assert.Equal(t, "Ann", *rows[0].UserName)
	assert.Nil(t, rows[1].UserName)
}

func TestRequestRepo_CountByBenefitStatus(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewRequestRepo(db)

	mock.ExpectQuery("GROUP BY benefit_id, status").
		WillReturnRows(sqlmock.NewRows([]string{"benefit_id", "status", "n"}).
			AddRow(1, 1, 4).
			AddRow(1, 2, 2))

	counts, err := repo.CountByBenefitStatus(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []StatusCount{
		{BenefitID: 1, Status: model.StatusPending, Count: 4},
		{BenefitID: 1, Status: model.StatusApproved, Count: 2},
	}, counts)
}

func TestPollRepo_GetStatus_MissingRowIsClosed(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPollRepo(db)

	mock.ExpectQuery("FROM poll_status").WillReturnError(sql.ErrNoRows)

	st, err := repo.GetStatus(context.Background())

	require.NoError(t, err)
	assert.False(t, st.IsOpen)
	assert.Zero(t, st.Version)
}

func TestPollRepo_SetStatus(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPollRepo(db)
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO poll_status").WithArgs(1, true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("FROM poll_status").
		WillReturnRows(sqlmock.NewRows([]string{"is_open", "version", "updated_at"}).AddRow(true, 4, now))
	mock.ExpectCommit()

	st, err := repo.SetStatus(context.Background(), true, now)

	require.NoError(t, err)
	assert.True(t, st.IsOpen)
	assert.Equal(t, int64(4), st.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPollRepo_ListResults(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPollRepo(db)

	mock.ExpectQuery("FROM poll_results").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "created_at", "selected_benefits", "satisfaction_rate"}).
			AddRow(1, uuid.NewString(), time.Now(), []byte("[2,3]"), 5))

	res, err := repo.ListResults(context.Background())

	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, []int64{2, 3}, res[0].SelectedBenefits)
	assert.Equal(t, 5, res[0].SatisfactionRate)
}
