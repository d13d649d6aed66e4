package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/benefits-cafeteria/internal/model"
)

var (
	ErrEmailExists  = errors.New("email already exists")
	ErrUserNotFound = errors.New("user not found")
)

// UserRepo persists users and their 1:1 profile rows.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "u.id, u.email, u.email_verified, u.is_active, u.role, u.created_at"

const profileColumns = userColumns + ", i.full_name, i.place_of_employment, i.position, i.employment_date"

// Create inserts the user and its profile in one transaction.  A new ID
// is generated when u.ID is zero.
func (r *UserRepo) Create(ctx context.Context, u *model.User, info model.UserInfo) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = normalizeEmail(u.Email)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO users (id, email, email_verified, is_active, role) VALUES (?,?,?,?,?)",
		u.ID, u.Email, u.EmailVerified, u.Active, string(u.Role)); err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_info (user_id, full_name, place_of_employment, position, employment_date)
		 VALUES (?,?,?,?,?)`,
		u.ID, info.FullName, info.PlaceOfEmployment, info.Position, info.EmploymentDate); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByEmail fetches a user by normalized email regardless of state.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users u WHERE u.email=? LIMIT 1", normalizeEmail(email))
	return scanUser(row)
}

// GetByID fetches a user by id regardless of state.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users u WHERE u.id=? LIMIT 1", id)
	return scanUser(row)
}

// GetProfile fetches an active user together with its profile.
func (r *UserRepo) GetProfile(ctx context.Context, id uuid.UUID) (model.UserProfile, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+profileColumns+` FROM users u
		 LEFT JOIN user_info i ON i.user_id = u.id
		 WHERE u.id=? AND u.is_active=TRUE LIMIT 1`, id)
	return scanProfile(row)
}

// ListActive returns all active users with their profiles ordered by email.
func (r *UserRepo) ListActive(ctx context.Context) ([]model.UserProfile, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+profileColumns+` FROM users u
		 LEFT JOIN user_info i ON i.user_id = u.id
		 WHERE u.is_active=TRUE ORDER BY u.email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.UserProfile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProfile replaces the profile fields and role of an active user.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, info model.UserInfo, role model.Role) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var active bool
	err = tx.QueryRowContext(ctx, "SELECT is_active FROM users WHERE id=? FOR UPDATE", id).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !active) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE users SET role=? WHERE id=?", string(role), id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_info (user_id, full_name, place_of_employment, position, employment_date)
		 VALUES (?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE full_name=VALUES(full_name), place_of_employment=VALUES(place_of_employment),
		   position=VALUES(position), employment_date=VALUES(employment_date)`,
		id, info.FullName, info.PlaceOfEmployment, info.Position, info.EmploymentDate); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Deactivate marks the user inactive.  Users are never hard deleted
// because their requests and poll results keep referencing them.
func (r *UserRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET is_active=FALSE WHERE id=? AND is_active=TRUE", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// MarkVerified records that the user followed a link sent to their email.
func (r *UserRepo) MarkVerified(ctx context.Context, id uuid.UUID) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET email_verified=TRUE WHERE id=?", id)
	return err
}

// CountEmployees counts active users that verified their email.
func (r *UserRepo) CountEmployees(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE is_active=TRUE AND email_verified=TRUE").Scan(&n)
	return n, err
}

// ListAdminEmails returns the addresses of active administrators.
func (r *UserRepo) ListAdminEmails(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT email FROM users WHERE role=? AND is_active=TRUE ORDER BY email", string(model.RoleAdmin))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		out = append(out, email)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u    model.User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.EmailVerified, &u.Active, &role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.Role = model.Role(role)
	return u, nil
}

func scanProfile(row rowScanner) (model.UserProfile, error) {
	var (
		p                         model.UserProfile
		role                      string
		fullName, place, position sql.NullString
		employmentDate            sql.NullTime
	)
	err := row.Scan(&p.User.ID, &p.User.Email, &p.User.EmailVerified, &p.User.Active, &role, &p.User.CreatedAt,
		&fullName, &place, &position, &employmentDate)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserProfile{}, ErrUserNotFound
	}
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("scan profile: %w", err)
	}
	p.User.Role = model.Role(role)
	p.Info.UserID = p.User.ID
	p.Info.FullName = nullString(fullName)
	p.Info.PlaceOfEmployment = nullString(place)
	p.Info.Position = nullString(position)
	if employmentDate.Valid {
		d := employmentDate.Time
		p.Info.EmploymentDate = &d
	}
	return p, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }
