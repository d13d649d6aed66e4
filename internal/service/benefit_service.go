package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/benefits-cafeteria/internal/eligibility"
	"github.com/iliyamo/benefits-cafeteria/internal/model"
	"github.com/iliyamo/benefits-cafeteria/internal/repository"
)

// MaxCoverSize bounds benefit cover uploads.
const MaxCoverSize = MaxFileSize

// BenefitStore persists the catalog.
type BenefitStore interface {
	Create(ctx context.Context, b *model.Benefit) error
	GetByID(ctx context.Context, id int64) (model.Benefit, error)
	List(ctx context.Context) ([]model.Benefit, error)
	Update(ctx context.Context, b model.Benefit) error
	SetCover(ctx context.Context, id int64, path *string) error
	Delete(ctx context.Context, id int64) error
}

// CategoryStore lists eligibility tiers.
type CategoryStore interface {
	List(ctx context.Context) ([]model.Category, error)
}

// ProfileStore loads a user's profile.
type ProfileStore interface {
	GetProfile(ctx context.Context, id uuid.UUID) (model.UserProfile, error)
}

// BenefitInput carries the editable fields of a benefit.
type BenefitInput struct {
	Name             string
	CardName         *string
	Text             *string
	Categories       []int
	NeedConfirmation bool
	NeedFiles        bool
}

// BenefitView is a catalog entry with its cover resolved to a URL.
type BenefitView struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	CardName         string  `json:"card_name"`
	Text             *string `json:"text,omitempty"`
	Categories       []int   `json:"categories"`
	CoverURL         *string `json:"cover_url,omitempty"`
	NeedConfirmation bool    `json:"need_confirmation"`
	NeedFiles        bool    `json:"need_files"`
}

// BenefitService serves the catalog to employees and its management to
// administrators.
type BenefitService struct {
	benefits   BenefitStore
	categories CategoryStore
	profiles   ProfileStore
	covers     BlobStore
	rules      eligibility.TagRules
	now        Clock
	serverURL  string
	log        *zap.Logger
}

func NewBenefitService(benefits BenefitStore, categories CategoryStore, profiles ProfileStore, covers BlobStore,
	rules eligibility.TagRules, now Clock, serverURL string, log *zap.Logger) *BenefitService {
	if rules == nil {
		rules = eligibility.DefaultTagRules()
	}
	return &BenefitService{
		benefits:   benefits,
		categories: categories,
		profiles:   profiles,
		covers:     covers,
		rules:      rules,
		now:        clockOrNow(now),
		serverURL:  strings.TrimRight(serverURL, "/"),
		log:        nopIfNil(log),
	}
}

// Visible returns the catalog filtered for user.
func (s *BenefitService) Visible(ctx context.Context, user model.User) ([]BenefitView, error) {
	all, err := s.benefits.List(ctx)
	if err != nil {
		return nil, err
	}
	var (
		info *model.UserInfo
		cats []model.Category
	)
	if !user.IsAdmin() {
		p, err := s.profiles.GetProfile(ctx, user.ID)
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrMissingProfile
		}
		if err != nil {
			return nil, err
		}
		info = &p.Info
		if cats, err = s.categories.List(ctx); err != nil {
			return nil, err
		}
	}
	visible, err := eligibility.Filter(user, info, all, cats, s.now(), s.rules)
	if err != nil {
		return nil, err
	}
	out := make([]BenefitView, 0, len(visible))
	for _, b := range visible {
		out = append(out, s.view(b))
	}
	return out, nil
}

// Get returns one benefit.
func (s *BenefitService) Get(ctx context.Context, id int64) (BenefitView, error) {
	b, err := s.load(ctx, id)
	if err != nil {
		return BenefitView{}, err
	}
	return s.view(b), nil
}

// Create adds a benefit to the catalog.
func (s *BenefitService) Create(ctx context.Context, in BenefitInput) (BenefitView, error) {
	if err := validateBenefit(in); err != nil {
		return BenefitView{}, err
	}
	b := model.Benefit{
		Name:             strings.TrimSpace(in.Name),
		CardName:         in.CardName,
		Text:             in.Text,
		Categories:       in.Categories,
		NeedConfirmation: in.NeedConfirmation,
		NeedFiles:        in.NeedFiles,
	}
	if err := s.benefits.Create(ctx, &b); err != nil {
		return BenefitView{}, err
	}
	return s.view(b), nil
}

// Update replaces the editable fields of a benefit.
func (s *BenefitService) Update(ctx context.Context, id int64, in BenefitInput) (BenefitView, error) {
	if err := validateBenefit(in); err != nil {
		return BenefitView{}, err
	}
	b, err := s.load(ctx, id)
	if err != nil {
		return BenefitView{}, err
	}
	b.Name = strings.TrimSpace(in.Name)
	b.CardName = in.CardName
	b.Text = in.Text
	b.Categories = in.Categories
	b.NeedConfirmation = in.NeedConfirmation
	b.NeedFiles = in.NeedFiles
	if err := s.benefits.Update(ctx, b); err != nil {
		if errors.Is(err, repository.ErrBenefitNotFound) {
			return BenefitView{}, fmt.Errorf("benefit %d: %w", id, ErrNotFound)
		}
		return BenefitView{}, err
	}
	return s.view(b), nil
}

// Delete removes a benefit and its cover image.
func (s *BenefitService) Delete(ctx context.Context, id int64) error {
	b, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.benefits.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrBenefitNotFound) {
			return fmt.Errorf("benefit %d: %w", id, ErrNotFound)
		}
		return err
	}
	if b.CoverPath != nil {
		if err := s.covers.Delete(ctx, *b.CoverPath); err != nil {
			s.log.Warn("delete cover failed", zap.Int64("benefit_id", id), zap.Error(err))
		}
	}
	return nil
}

// SetCover stores a new cover image and removes the previous one.
func (s *BenefitService) SetCover(ctx context.Context, id int64, up Upload) (BenefitView, error) {
	if !isImage(up.ContentType) {
		return BenefitView{}, ErrInvalidFileType
	}
	if up.Size > MaxCoverSize {
		return BenefitView{}, ErrFileTooLarge
	}
	b, err := s.load(ctx, id)
	if err != nil {
		return BenefitView{}, err
	}
	name := fmt.Sprintf("%s_cover%d%s", uuid.NewString(), id, strings.ToLower(filepath.Ext(filepath.Base(up.Filename))))
	if err := s.covers.Put(ctx, name, &sizeGuard{r: up.Content, left: MaxCoverSize}); err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return BenefitView{}, ErrFileTooLarge
		}
		return BenefitView{}, fmt.Errorf("store cover: %w", err)
	}
	if err := s.benefits.SetCover(ctx, id, &name); err != nil {
		_ = s.covers.Delete(ctx, name)
		return BenefitView{}, err
	}
	if b.CoverPath != nil {
		if err := s.covers.Delete(ctx, *b.CoverPath); err != nil {
			s.log.Warn("delete old cover failed", zap.Int64("benefit_id", id), zap.Error(err))
		}
	}
	b.CoverPath = &name
	return s.view(b), nil
}

// OpenCover streams a stored cover image.
func (s *BenefitService) OpenCover(ctx context.Context, name string) (io.ReadCloser, error) {
	rc, err := s.covers.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("cover %q: %w", name, ErrNotFound)
	}
	return rc, nil
}

func (s *BenefitService) load(ctx context.Context, id int64) (model.Benefit, error) {
	b, err := s.benefits.GetByID(ctx, id)
	if errors.Is(err, repository.ErrBenefitNotFound) {
		return model.Benefit{}, fmt.Errorf("benefit %d: %w", id, ErrNotFound)
	}
	return b, err
}

func (s *BenefitService) view(b model.Benefit) BenefitView {
	v := BenefitView{
		ID:               b.ID,
		Name:             b.Name,
		CardName:         b.DisplayName(),
		Text:             b.Text,
		Categories:       b.Categories,
		NeedConfirmation: b.NeedConfirmation,
		NeedFiles:        b.NeedFiles,
	}
	if v.Categories == nil {
		v.Categories = []int{}
	}
	if b.CoverPath != nil {
		u := s.serverURL + "/benefits/images/" + *b.CoverPath
		v.CoverURL = &u
	}
	return v
}

func validateBenefit(in BenefitInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(name) > 80 {
		return fmt.Errorf("%w: name longer than 80 characters", ErrValidation)
	}
	if in.CardName != nil && len(*in.CardName) > 80 {
		return fmt.Errorf("%w: card name longer than 80 characters", ErrValidation)
	}
	for _, tag := range in.Categories {
		if tag < 1 {
			return fmt.Errorf("%w: category tags must be positive", ErrValidation)
		}
	}
	return nil
}
