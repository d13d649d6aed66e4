package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/benefits-cafeteria/internal/metrics"
	"github.com/iliyamo/benefits-cafeteria/internal/model"
	"github.com/iliyamo/benefits-cafeteria/internal/queue"
	"github.com/iliyamo/benefits-cafeteria/internal/repository"
)

const (
	// MaxFiles is the number of evidence files accepted per request.
	MaxFiles = 5
	// MaxFileSize is the upper bound for one evidence file in bytes.
	MaxFileSize = 20_000_000
)

// RequestBenefits is the catalog lookup used by the workflow.
type RequestBenefits interface {
	GetByID(ctx context.Context, id int64) (model.Benefit, error)
}

// RequestStore persists benefit requests.
type RequestStore interface {
	Create(ctx context.Context, req *model.BenefitRequest) error
	GetRow(ctx context.Context, id int64) (model.RequestRow, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.RequestRow, error)
	ListAll(ctx context.Context, desc bool) ([]model.RequestRow, error)
	Transition(ctx context.Context, id int64, to model.RequestStatus) (model.BenefitRequest, error)
}

// RequestUsers resolves notification recipients.
type RequestUsers interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	ListAdminEmails(ctx context.Context) ([]string, error)
}

// RequestView is one row of a request listing.
type RequestView struct {
	ID          int64               `json:"id"`
	UserID      uuid.UUID           `json:"user_id"`
	UserName    *string             `json:"user_name,omitempty"`
	BenefitID   int64               `json:"benefit_id"`
	BenefitName string              `json:"benefit_name"`
	Status      model.RequestStatus `json:"status"`
	StatusLabel string              `json:"status_label"`
	CreatedAt   time.Time           `json:"created_at"`
}

// RequestDetail adds fetchable attachment URLs to a RequestView.
type RequestDetail struct {
	RequestView
	Files []string `json:"files"`
}

// RequestService implements submission, review and history of benefit
// requests.
type RequestService struct {
	benefits  RequestBenefits
	requests  RequestStore
	users     RequestUsers
	blobs     BlobStore
	events    dispatcher
	now       Clock
	serverURL string
	log       *zap.Logger
}

func NewRequestService(benefits RequestBenefits, requests RequestStore, users RequestUsers, blobs BlobStore,
	pub EventPublisher, now Clock, serverURL string, log *zap.Logger) *RequestService {
	log = nopIfNil(log)
	return &RequestService{
		benefits:  benefits,
		requests:  requests,
		users:     users,
		blobs:     blobs,
		events:    dispatcher{pub: pub, log: log},
		now:       clockOrNow(now),
		serverURL: strings.TrimRight(serverURL, "/"),
		log:       log,
	}
}

// Submit records a request for benefitID by user.  Benefits that need no
// confirmation are accepted without creating a record and a nil request
// is returned.  Uploads are ignored unless the benefit needs files; all
// of them are validated before any is stored.
func (s *RequestService) Submit(ctx context.Context, benefitID int64, user model.User, uploads []Upload) (*model.BenefitRequest, error) {
	benefit, err := s.benefits.GetByID(ctx, benefitID)
	if errors.Is(err, repository.ErrBenefitNotFound) {
		return nil, fmt.Errorf("benefit %d: %w", benefitID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !benefit.NeedConfirmation {
		metrics.RequestsSubmittedTotal.WithLabelValues("auto_approved").Inc()
		s.log.Info("benefit auto-approved", zap.Int64("benefit_id", benefitID), zap.String("user_id", user.ID.String()))
		return nil, nil
	}
	if !benefit.NeedFiles {
		uploads = nil
	}
	if err := validateUploads(uploads); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(uploads))
	for _, up := range uploads {
		name := blobName(benefitID, up.Filename)
		if err := s.blobs.Put(ctx, name, &sizeGuard{r: up.Content, left: MaxFileSize}); err != nil {
			s.discard(names)
			if errors.Is(err, ErrFileTooLarge) {
				return nil, ErrFileTooLarge
			}
			return nil, fmt.Errorf("store attachment: %w", err)
		}
		names = append(names, name)
	}

	req := &model.BenefitRequest{
		UserID:    user.ID,
		BenefitID: benefitID,
		CreatedAt: s.now().UTC(),
		Files:     names,
		Status:    model.StatusPending,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		// stored files stay behind without a referencing row
		s.log.Warn("request insert failed after storing attachments",
			zap.Strings("files", names), zap.Error(err))
		return nil, fmt.Errorf("create request: %w", err)
	}
	metrics.RequestsSubmittedTotal.WithLabelValues("recorded").Inc()

	s.notifyAdmins(ctx, req, benefit.DisplayName(), user.Email)
	return req, nil
}

func (s *RequestService) notifyAdmins(ctx context.Context, req *model.BenefitRequest, benefitName, requester string) {
	admins, err := s.users.ListAdminEmails(ctx)
	if err != nil {
		s.log.Warn("load admin emails failed", zap.Error(err))
		return
	}
	if len(admins) == 0 {
		return
	}
	s.events.fire(queue.Event{
		Kind:        queue.KindRequestSubmitted,
		To:          admins,
		RequestID:   req.ID,
		BenefitName: benefitName,
		Requester:   requester,
		Link:        fmt.Sprintf("%s/admin/requests/%d", s.serverURL, req.ID),
		OccurredAt:  req.CreatedAt.Format(time.RFC3339),
	})
}

// discard removes blobs stored by a submission that failed validation
// midway.
func (s *RequestService) discard(names []string) {
	for _, n := range names {
		if err := s.blobs.Delete(context.Background(), n); err != nil {
			s.log.Warn("discard attachment failed", zap.String("name", n), zap.Error(err))
		}
	}
}

// SetStatus moves a pending request to approved or denied and notifies
// the requester.
func (s *RequestService) SetStatus(ctx context.Context, requestID int64, status model.RequestStatus) (RequestDetail, error) {
	if !status.Valid() {
		return RequestDetail{}, ErrInvalidStatus
	}
	req, err := s.requests.Transition(ctx, requestID, status)
	switch {
	case errors.Is(err, repository.ErrRequestNotFound):
		return RequestDetail{}, fmt.Errorf("request %d: %w", requestID, ErrNotFound)
	case errors.Is(err, repository.ErrConflict):
		return RequestDetail{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, req.Status.Name(), status.Name())
	case err != nil:
		return RequestDetail{}, err
	}
	metrics.RequestTransitionsTotal.WithLabelValues(status.Name()).Inc()

	row, err := s.requests.GetRow(ctx, requestID)
	if err != nil {
		return RequestDetail{}, err
	}
	s.notifyRequester(ctx, req, row.BenefitName)
	return s.detail(row), nil
}

func (s *RequestService) notifyRequester(ctx context.Context, req model.BenefitRequest, benefitName string) {
	owner, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		s.log.Warn("load requester failed", zap.Int64("request_id", req.ID), zap.Error(err))
		return
	}
	s.events.fire(queue.Event{
		Kind:        queue.KindRequestStatusChanged,
		To:          []string{owner.Email},
		RequestID:   req.ID,
		BenefitName: benefitName,
		StatusLabel: req.Status.Label(),
		OccurredAt:  s.now().UTC().Format(time.RFC3339),
	})
}

// ListForUser returns the user's requests, newest first.
func (s *RequestService) ListForUser(ctx context.Context, userID uuid.UUID) ([]RequestView, error) {
	rows, err := s.requests.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return views(rows), nil
}

// ListAll returns every request for the admin view, sorted by creation
// time descending when desc is set.
func (s *RequestService) ListAll(ctx context.Context, desc bool) ([]RequestView, error) {
	rows, err := s.requests.ListAll(ctx, desc)
	if err != nil {
		return nil, err
	}
	return views(rows), nil
}

// Detail returns one request with attachment URLs.  Employees may only
// view their own requests.
func (s *RequestService) Detail(ctx context.Context, requestID int64, viewer model.User) (RequestDetail, error) {
	row, err := s.requests.GetRow(ctx, requestID)
	if errors.Is(err, repository.ErrRequestNotFound) {
		return RequestDetail{}, fmt.Errorf("request %d: %w", requestID, ErrNotFound)
	}
	if err != nil {
		return RequestDetail{}, err
	}
	if !viewer.IsAdmin() && row.Request.UserID != viewer.ID {
		return RequestDetail{}, ErrAccessDenied
	}
	return s.detail(row), nil
}

// OpenAttachment streams an evidence file that belongs to the request.
func (s *RequestService) OpenAttachment(ctx context.Context, requestID int64, name string) (io.ReadCloser, error) {
	row, err := s.requests.GetRow(ctx, requestID)
	if errors.Is(err, repository.ErrRequestNotFound) {
		return nil, fmt.Errorf("request %d: %w", requestID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	owned := false
	for _, f := range row.Request.Files {
		if f == name {
			owned = true
			break
		}
	}
	if !owned {
		return nil, fmt.Errorf("attachment %q: %w", name, ErrNotFound)
	}
	rc, err := s.blobs.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("attachment %q: %w", name, ErrNotFound)
	}
	return rc, nil
}

func (s *RequestService) detail(row model.RequestRow) RequestDetail {
	d := RequestDetail{RequestView: view(row), Files: make([]string, 0, len(row.Request.Files))}
	for _, f := range row.Request.Files {
		d.Files = append(d.Files, fmt.Sprintf("%s/admin/requests/%d/%s", s.serverURL, row.Request.ID, f))
	}
	return d
}

func views(rows []model.RequestRow) []RequestView {
	out := make([]RequestView, 0, len(rows))
	for _, r := range rows {
		out = append(out, view(r))
	}
	return out
}

func view(r model.RequestRow) RequestView {
	return RequestView{
		ID:          r.Request.ID,
		UserID:      r.Request.UserID,
		UserName:    r.UserName,
		BenefitID:   r.Request.BenefitID,
		BenefitName: r.BenefitName,
		Status:      r.Request.Status,
		StatusLabel: r.Request.Status.Label(),
		CreatedAt:   r.Request.CreatedAt,
	}
}

// validateUploads checks count, then content type, then declared size.
func validateUploads(uploads []Upload) error {
	if len(uploads) > MaxFiles {
		return ErrTooManyFiles
	}
	for _, up := range uploads {
		if !isImage(up.ContentType) {
			return fmt.Errorf("%w: %s", ErrInvalidFileType, up.Filename)
		}
	}
	for _, up := range uploads {
		if up.Size > MaxFileSize {
			return fmt.Errorf("%w: %s", ErrFileTooLarge, up.Filename)
		}
	}
	return nil
}

func isImage(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(ct, "image/") && len(ct) > len("image/")
}

// blobName builds "<uuid>_<benefitID><ext>" keeping the client's extension.
func blobName(benefitID int64, filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return uuid.NewString() + "_" + strconv.FormatInt(benefitID, 10) + ext
}

// sizeGuard fails the copy once more than left bytes were read, covering
// clients that under-declare the part size.
type sizeGuard struct {
	r    io.Reader
	left int64
}

func (g *sizeGuard) Read(p []byte) (int, error) {
	n, err := g.r.Read(p)
	g.left -= int64(n)
	if g.left < 0 {
		return n, ErrFileTooLarge
	}
	return n, err
}
