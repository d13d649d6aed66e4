package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the access level of a user.  It is stored as a short string
// in the users.role column and carried in the JWT "role" claim.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// ParseRole normalizes a raw role string.  Unknown values are rejected.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the named roles.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleEmployee }

// RoleFromAdminFlag maps the "administration" checkbox used by the admin
// user forms onto a Role.
func RoleFromAdminFlag(admin bool) Role {
	if admin {
		return RoleAdmin
	}
	return RoleEmployee
}

// User represents an application user record as stored in the
// `users` table.  Users never hold a password; they log in through
// one-time links sent to their email address.
//
// Fields:
//
//	ID            – opaque identifier (UUID) of the user.
//	Email         – unique email address.
//	EmailVerified – set once the user followed a login/invite link.
//	Active        – inactive users are hidden and cannot authenticate.
//	Role          – admin or employee.
//	CreatedAt     – timestamp of creation.
type User struct {
	ID            uuid.UUID // users.id
	Email         string    // users.email
	EmailVerified bool      // users.email_verified
	Active        bool      // users.is_active
	Role          Role      // users.role
	CreatedAt     time.Time // users.created_at
}

// IsAdmin reports whether the user has the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// UserInfo is the 1:1 profile extension of a user stored in the
// `user_info` table.  EmploymentDate drives benefit eligibility.
type UserInfo struct {
	UserID            uuid.UUID  // user_info.user_id
	FullName          *string    // user_info.full_name
	PlaceOfEmployment *string    // user_info.place_of_employment
	Position          *string    // user_info.position
	EmploymentDate    *time.Time // user_info.employment_date (date only)
}

// TenureDays returns the number of whole days between the employment
// date and now.  ok is false when no employment date is recorded.
func (i UserInfo) TenureDays(now time.Time) (days int, ok bool) {
	if i.EmploymentDate == nil {
		return 0, false
	}
	start := truncateDay(*i.EmploymentDate)
	end := truncateDay(now)
	return int(end.Sub(start).Hours() / 24), true
}

// ExperienceLabel renders tenure in the largest whole unit, e.g.
// "3 years", "1 month" or "12 days".  Anything below one day is
// reported as "1 day".
func (i UserInfo) ExperienceLabel(now time.Time) string {
	if i.EmploymentDate == nil {
		return ""
	}
	years, months, days := calendarDiff(truncateDay(*i.EmploymentDate), truncateDay(now))
	switch {
	case years > 0:
		return plural(years, "year")
	case months > 0:
		return plural(months, "month")
	case days > 0:
		return plural(days, "day")
	default:
		return "1 day"
	}
}

// UserProfile joins a user with its profile for listings.
type UserProfile struct {
	User User
	Info UserInfo
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// calendarDiff returns the difference between two dates as whole years,
// months and days, borrowing like a wall calendar does.
func calendarDiff(from, to time.Time) (years, months, days int) {
	if to.Before(from) {
		return 0, 0, 0
	}
	years = to.Year() - from.Year()
	months = int(to.Month()) - int(from.Month())
	days = to.Day() - from.Day()
	if days < 0 {
		// days in the month preceding "to"
		days += time.Date(to.Year(), to.Month(), 0, 0, 0, 0, 0, time.UTC).Day()
		months--
	}
	if months < 0 {
		months += 12
		years--
	}
	return years, months, days
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
