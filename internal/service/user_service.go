package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/benefits-cafeteria/internal/model"
	"github.com/iliyamo/benefits-cafeteria/internal/repository"
)

// UserStore persists users and profiles.
type UserStore interface {
	Create(ctx context.Context, u *model.User, info model.UserInfo) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetProfile(ctx context.Context, id uuid.UUID) (model.UserProfile, error)
	ListActive(ctx context.Context) ([]model.UserProfile, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, info model.UserInfo, role model.Role) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// Inviter sends the first login link to a new user.
type Inviter interface {
	SendInvite(ctx context.Context, u model.User) error
}

// UserInput carries the admin-editable fields of a user.
type UserInput struct {
	Email             string
	FullName          *string
	PlaceOfEmployment *string
	Position          *string
	EmploymentDate    *time.Time
	Administration    bool
}

// UserView is the public representation of a user profile.
type UserView struct {
	ID                uuid.UUID  `json:"id"`
	Email             string     `json:"email"`
	EmailVerified     bool       `json:"email_verified"`
	Role              model.Role `json:"role"`
	Administration    bool       `json:"administration"`
	FullName          *string    `json:"full_name"`
	PlaceOfEmployment *string    `json:"place_of_employment"`
	Position          *string    `json:"position"`
	EmploymentDate    *string    `json:"employment_date"`
	Experience        string     `json:"experience,omitempty"`
}

// UserService manages accounts for administrators and serves the
// caller's own profile.
type UserService struct {
	users   UserStore
	tokens  TokenStore
	inviter Inviter
	now     Clock
	log     *zap.Logger
}

func NewUserService(users UserStore, tokens TokenStore, inviter Inviter, now Clock, log *zap.Logger) *UserService {
	return &UserService{users: users, tokens: tokens, inviter: inviter, now: clockOrNow(now), log: nopIfNil(log)}
}

// Me returns the profile of an active user.
func (s *UserService) Me(ctx context.Context, id uuid.UUID) (UserView, error) {
	return s.Get(ctx, id)
}

// Get returns the profile of an active user.
func (s *UserService) Get(ctx context.Context, id uuid.UUID) (UserView, error) {
	p, err := s.users.GetProfile(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return UserView{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return UserView{}, err
	}
	return s.view(p), nil
}

// List returns every active user.
func (s *UserService) List(ctx context.Context) ([]UserView, error) {
	ps, err := s.users.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserView, 0, len(ps))
	for _, p := range ps {
		out = append(out, s.view(p))
	}
	return out, nil
}

// Add creates a user and emails an invite link.  A failed invite is
// logged; the account stays and the user can request a new link once
// an admin re-sends it.
func (s *UserService) Add(ctx context.Context, in UserInput) (UserView, error) {
	email, err := validEmail(in.Email)
	if err != nil {
		return UserView{}, err
	}
	u := model.User{Email: email, Active: true, Role: model.RoleFromAdminFlag(in.Administration)}
	info := infoFrom(in)
	if err := s.users.Create(ctx, &u, info); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return UserView{}, fmt.Errorf("%w: email %s", ErrConflict, email)
		}
		return UserView{}, err
	}
	if s.inviter != nil {
		if err := s.inviter.SendInvite(ctx, u); err != nil {
			s.log.Warn("send invite failed", zap.String("user_id", u.ID.String()), zap.Error(err))
		}
	}
	info.UserID = u.ID
	return s.view(model.UserProfile{User: u, Info: info}), nil
}

// Update replaces the profile fields and role of a user.  The email
// cannot be changed.
func (s *UserService) Update(ctx context.Context, id uuid.UUID, in UserInput) (UserView, error) {
	err := s.users.UpdateProfile(ctx, id, infoFrom(in), model.RoleFromAdminFlag(in.Administration))
	if errors.Is(err, repository.ErrUserNotFound) {
		return UserView{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return UserView{}, err
	}
	return s.Get(ctx, id)
}

// Deactivate hides the user and revokes outstanding login links.
func (s *UserService) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.users.Deactivate(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return err
	}
	if err := s.tokens.DeleteForUser(ctx, id); err != nil {
		s.log.Warn("revoke login links failed", zap.String("user_id", id.String()), zap.Error(err))
	}
	return nil
}

// EnsureAdmin creates a verified administrator for email, or promotes
// the existing user.  created reports whether a new account was made.
func (s *UserService) EnsureAdmin(ctx context.Context, email string) (view UserView, created bool, err error) {
	email, err = validEmail(email)
	if err != nil {
		return UserView{}, false, err
	}
	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		u := model.User{Email: email, EmailVerified: true, Active: true, Role: model.RoleAdmin}
		if err := s.users.Create(ctx, &u, model.UserInfo{}); err != nil {
			return UserView{}, false, err
		}
		return s.view(model.UserProfile{User: u, Info: model.UserInfo{UserID: u.ID}}), true, nil
	case err != nil:
		return UserView{}, false, err
	}
	p, err := s.users.GetProfile(ctx, existing.ID)
	if err != nil {
		return UserView{}, false, fmt.Errorf("user %s is inactive: %w", email, ErrConflict)
	}
	if !p.User.IsAdmin() {
		if err := s.users.UpdateProfile(ctx, p.User.ID, p.Info, model.RoleAdmin); err != nil {
			return UserView{}, false, err
		}
		p.User.Role = model.RoleAdmin
	}
	return s.view(p), false, nil
}

func (s *UserService) view(p model.UserProfile) UserView {
	v := UserView{
		ID:                p.User.ID,
		Email:             p.User.Email,
		EmailVerified:     p.User.EmailVerified,
		Role:              p.User.Role,
		Administration:    p.User.IsAdmin(),
		FullName:          p.Info.FullName,
		PlaceOfEmployment: p.Info.PlaceOfEmployment,
		Position:          p.Info.Position,
		Experience:        p.Info.ExperienceLabel(s.now()),
	}
	if p.Info.EmploymentDate != nil {
		d := p.Info.EmploymentDate.Format("2006-01-02")
		v.EmploymentDate = &d
	}
	return v
}

func infoFrom(in UserInput) model.UserInfo {
	return model.UserInfo{
		FullName:          trimmed(in.FullName),
		PlaceOfEmployment: trimmed(in.PlaceOfEmployment),
		Position:          trimmed(in.Position),
		EmploymentDate:    in.EmploymentDate,
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func validEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", fmt.Errorf("%w: invalid email", ErrValidation)
	}
	return strings.ToLower(addr.Address), nil
}
