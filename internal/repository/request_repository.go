package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/benefits-cafeteria/internal/model"
)

// ErrRequestNotFound is returned when no benefit request exists for the id.
var ErrRequestNotFound = errors.New("request not found")

// RequestRepo persists benefit requests and answers the aggregate
// queries used by analytics.
type RequestRepo struct{ db *sql.DB }

func NewRequestRepo(db *sql.DB) *RequestRepo { return &RequestRepo{db: db} }

const requestColumns = "r.id, r.user_id, r.benefit_id, r.created_at, r.files, r.status"

// rowSelect joins the benefit display name and requester full name.
const rowSelect = "SELECT " + requestColumns + `, COALESCE(b.card_name, b.name), i.full_name
	FROM user_benefit_requests r
	JOIN benefits b ON b.id = r.benefit_id
	LEFT JOIN user_info i ON i.user_id = r.user_id`

// Create inserts a pending request and sets req.ID and req.CreatedAt.
func (r *RequestRepo) Create(ctx context.Context, req *model.BenefitRequest) error {
	files, err := encodeJSON(req.Files)
	if err != nil {
		return err
	}
	if req.Status == 0 {
		req.Status = model.StatusPending
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO user_benefit_requests (user_id, benefit_id, created_at, files, status) VALUES (?,?,?,?,?)",
		req.UserID, req.BenefitID, req.CreatedAt.UTC(), files, int(req.Status))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	req.ID = id
	return nil
}

// GetRow returns one request joined with names, or ErrRequestNotFound.
func (r *RequestRepo) GetRow(ctx context.Context, id int64) (model.RequestRow, error) {
	row := r.db.QueryRowContext(ctx, rowSelect+" WHERE r.id=?", id)
	return scanRequestRow(row)
}

// ListByUser returns the user's requests, newest first.
func (r *RequestRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.RequestRow, error) {
	return r.listRows(ctx, rowSelect+" WHERE r.user_id=? ORDER BY r.created_at DESC, r.id DESC", userID)
}

// ListAll returns every request of active users sorted by creation time.
func (r *RequestRepo) ListAll(ctx context.Context, desc bool) ([]model.RequestRow, error) {
	order := "ASC"
	if desc {
		order = "DESC"
	}
	q := rowSelect + ` JOIN users u ON u.id = r.user_id
		WHERE u.is_active=TRUE
		ORDER BY r.created_at ` + order + ", r.id " + order
	return r.listRows(ctx, q)
}

func (r *RequestRepo) listRows(ctx context.Context, q string, args ...any) ([]model.RequestRow, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.RequestRow{}
	for rows.Next() {
		rr, err := scanRequestRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}

// Transition moves a request to status `to` inside one transaction.  The
// row is locked while the current status is checked; ErrConflict is
// returned when the current status does not allow the move.
func (r *RequestRepo) Transition(ctx context.Context, id int64, to model.RequestStatus) (model.BenefitRequest, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.BenefitRequest{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM user_benefit_requests r WHERE r.id=? FOR UPDATE", id)
	req, err := scanRequest(row)
	if err != nil {
		return model.BenefitRequest{}, err
	}
	if !req.Status.CanTransitionTo(to) {
		return req, fmt.Errorf("%w: request %d is %s", ErrConflict, id, req.Status.Name())
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE user_benefit_requests SET status=? WHERE id=?", int(to), id); err != nil {
		return model.BenefitRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.BenefitRequest{}, err
	}
	committed = true
	req.Status = to
	return req, nil
}

// StatusCount is the number of requests against a benefit in one status.
type StatusCount struct {
	BenefitID int64
	Status    model.RequestStatus
	Count     int
}

// CountByBenefitStatus groups all requests by benefit and status.
func (r *RequestRepo) CountByBenefitStatus(ctx context.Context) ([]StatusCount, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT benefit_id, status, COUNT(*) FROM user_benefit_requests GROUP BY benefit_id, status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var (
			sc     StatusCount
			status int
		)
		if err := rows.Scan(&sc.BenefitID, &status, &sc.Count); err != nil {
			return nil, err
		}
		sc.Status = model.RequestStatus(status)
		out = append(out, sc)
	}
	return out, rows.Err()
}

// CountRequesters returns how many distinct users ever filed a request.
func (r *RequestRepo) CountRequesters(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT user_id) FROM user_benefit_requests").Scan(&n)
	return n, err
}

func scanRequest(row rowScanner) (model.BenefitRequest, error) {
	var (
		req    model.BenefitRequest
		files  []byte
		status int
	)
	err := row.Scan(&req.ID, &req.UserID, &req.BenefitID, &req.CreatedAt, &files, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BenefitRequest{}, ErrRequestNotFound
	}
	if err != nil {
		return model.BenefitRequest{}, err
	}
	req.Status = model.RequestStatus(status)
	if req.Files, err = decodeJSON[string](files); err != nil {
		return model.BenefitRequest{}, fmt.Errorf("request %d files: %w", req.ID, err)
	}
	return req, nil
}

func scanRequestRow(row rowScanner) (model.RequestRow, error) {
	var (
		rr       model.RequestRow
		files    []byte
		status   int
		userName sql.NullString
	)
	err := row.Scan(&rr.Request.ID, &rr.Request.UserID, &rr.Request.BenefitID, &rr.Request.CreatedAt,
		&files, &status, &rr.BenefitName, &userName)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RequestRow{}, ErrRequestNotFound
	}
	if err != nil {
		return model.RequestRow{}, err
	}
	rr.Request.Status = model.RequestStatus(status)
	rr.UserName = nullString(userName)
	if rr.Request.Files, err = decodeJSON[string](files); err != nil {
		return model.RequestRow{}, fmt.Errorf("request %d files: %w", rr.Request.ID, err)
	}
	return rr, nil
}
