package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/benefits-cafeteria/internal/model"
)

// PollRepo stores the poll switch and the submitted results.
type PollRepo struct{ db *sql.DB }

func NewPollRepo(db *sql.DB) *PollRepo { return &PollRepo{db: db} }

// pollStatusID is the primary key of the single poll_status row.
const pollStatusID = 1

// GetStatus reads the switch.  A missing row reads as closed, version 0.
func (r *PollRepo) GetStatus(ctx context.Context) (model.PollStatus, error) {
	var st model.PollStatus
	err := r.db.QueryRowContext(ctx,
		"SELECT is_open, version, updated_at FROM poll_status WHERE id=?", pollStatusID).
		Scan(&st.IsOpen, &st.Version, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PollStatus{}, nil
	}
	return st, err
}

// SetStatus writes the switch and bumps its version, returning the new
// record.
func (r *PollRepo) SetStatus(ctx context.Context, open bool, now time.Time) (model.PollStatus, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.PollStatus{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO poll_status (id, is_open, version, updated_at) VALUES (?,?,1,?)
		 ON DUPLICATE KEY UPDATE is_open=VALUES(is_open), version=version+1, updated_at=VALUES(updated_at)`,
		pollStatusID, open, now.UTC()); err != nil {
		return model.PollStatus{}, err
	}
	var st model.PollStatus
	if err := tx.QueryRowContext(ctx,
		"SELECT is_open, version, updated_at FROM poll_status WHERE id=?", pollStatusID).
		Scan(&st.IsOpen, &st.Version, &st.UpdatedAt); err != nil {
		return model.PollStatus{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.PollStatus{}, err
	}
	committed = true
	return st, nil
}

// InsertResult stores one submission and sets res.ID.
func (r *PollRepo) InsertResult(ctx context.Context, res *model.PollResult) error {
	selected, err := encodeJSON(res.SelectedBenefits)
	if err != nil {
		return err
	}
	out, err := r.db.ExecContext(ctx,
		"INSERT INTO poll_results (user_id, created_at, selected_benefits, satisfaction_rate) VALUES (?,?,?,?)",
		res.UserID, res.CreatedAt.UTC(), selected, res.SatisfactionRate)
	if err != nil {
		return err
	}
	id, err := out.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = id
	return nil
}

// ListResults returns every submission, oldest first.
func (r *PollRepo) ListResults(ctx context.Context) ([]model.PollResult, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, user_id, created_at, selected_benefits, satisfaction_rate FROM poll_results ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PollResult
	for rows.Next() {
		var (
			pr       model.PollResult
			selected []byte
		)
		if err := rows.Scan(&pr.ID, &pr.UserID, &pr.CreatedAt, &selected, &pr.SatisfactionRate); err != nil {
			return nil, err
		}
		if pr.SelectedBenefits, err = decodeJSON[int64](selected); err != nil {
			return nil, fmt.Errorf("poll result %d: %w", pr.ID, err)
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}
