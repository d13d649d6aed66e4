package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/benefits-cafeteria/internal/model"
	"github.com/iliyamo/benefits-cafeteria/internal/queue"
	"github.com/iliyamo/benefits-cafeteria/internal/repository"
	"github.com/iliyamo/benefits-cafeteria/internal/utils"
)

// AuthUsers is the user lookup needed for login.
type AuthUsers interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
}

// TokenStore persists hashed login link tokens.
type TokenStore interface {
	Store(ctx context.Context, userID uuid.UUID, tokenHash string, exp time.Time) error
	Consume(ctx context.Context, tokenHash string, now time.Time) (uuid.UUID, error)
	DeleteForUser(ctx context.Context, userID uuid.UUID) error
}

// AuthSettings configures token lifetimes and link targets.
type AuthSettings struct {
	JWTSecret    string
	AccessTTLMin int
	LinkTTLMin   int
	ServerURL    string
}

// AuthService implements passwordless login through emailed one-time
// links.
type AuthService struct {
	users  AuthUsers
	tokens TokenStore
	events dispatcher
	now    Clock
	cfg    AuthSettings
	log    *zap.Logger
}

func NewAuthService(users AuthUsers, tokens TokenStore, pub EventPublisher, now Clock, cfg AuthSettings, log *zap.Logger) *AuthService {
	log = nopIfNil(log)
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	if cfg.LinkTTLMin <= 0 {
		cfg.LinkTTLMin = 30
	}
	return &AuthService{users: users, tokens: tokens, events: dispatcher{pub: pub, log: log}, now: clockOrNow(now), cfg: cfg, log: log}
}

// RequestLogin emails a login link to an active user that already
// verified their address.
func (s *AuthService) RequestLogin(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) || (err == nil && !u.Active) {
		return fmt.Errorf("user %q: %w", email, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if !u.EmailVerified {
		return fmt.Errorf("%w: email not verified", ErrAccessDenied)
	}
	return s.sendLink(ctx, u, queue.KindLoginLink)
}

// SendInvite emails a first login link to a freshly created user.
func (s *AuthService) SendInvite(ctx context.Context, u model.User) error {
	return s.sendLink(ctx, u, queue.KindUserInvited)
}

func (s *AuthService) sendLink(ctx context.Context, u model.User, kind queue.Kind) error {
	raw, err := utils.NewLinkToken()
	if err != nil {
		return err
	}
	now := s.now().UTC()
	exp := now.Add(time.Duration(s.cfg.LinkTTLMin) * time.Minute)
	if err := s.tokens.Store(ctx, u.ID, utils.HashToken(raw), exp); err != nil {
		return fmt.Errorf("store login token: %w", err)
	}
	s.events.fire(queue.Event{
		Kind:       kind,
		To:         []string{u.Email},
		Link:       s.cfg.ServerURL + "/users/authorize/" + raw,
		LinkTTLMin: s.cfg.LinkTTLMin,
		OccurredAt: now.Format(time.RFC3339),
	})
	return nil
}

// Authorize consumes a login link token and issues an access token.
func (s *AuthService) Authorize(ctx context.Context, rawToken string) (utils.AccessToken, model.User, error) {
	now := s.now()
	userID, err := s.tokens.Consume(ctx, utils.HashToken(rawToken), now)
	if errors.Is(err, repository.ErrTokenInvalid) {
		return utils.AccessToken{}, model.User{}, ErrUnauthorized
	}
	if err != nil {
		return utils.AccessToken{}, model.User{}, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) || (err == nil && !u.Active) {
		return utils.AccessToken{}, model.User{}, ErrUnauthorized
	}
	if err != nil {
		return utils.AccessToken{}, model.User{}, err
	}
	if !u.EmailVerified {
		if err := s.users.MarkVerified(ctx, u.ID); err != nil {
			return utils.AccessToken{}, model.User{}, err
		}
		u.EmailVerified = true
	}
	tok, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, s.cfg.AccessTTLMin, now)
	if err != nil {
		return utils.AccessToken{}, model.User{}, err
	}
	s.log.Info("user authorized", zap.String("user_id", u.ID.String()), zap.String("role", string(u.Role)))
	return tok, u, nil
}
