package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/benefits-cafeteria/internal/model"
)

// ErrBenefitNotFound is returned when no benefit exists for the given id.
var ErrBenefitNotFound = errors.New("benefit not found")

// BenefitRepo provides CRUD access to the benefit catalog.
type BenefitRepo struct{ db *sql.DB }

func NewBenefitRepo(db *sql.DB) *BenefitRepo { return &BenefitRepo{db: db} }

const benefitColumns = "id, name, card_name, text, categories, cover_path, need_confirmation, need_files"

// Create inserts a benefit and sets b.ID.
func (r *BenefitRepo) Create(ctx context.Context, b *model.Benefit) error {
	cats, err := encodeJSON(b.Categories)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO benefits (name, card_name, text, categories, cover_path, need_confirmation, need_files)
		 VALUES (?,?,?,?,?,?,?)`,
		b.Name, b.CardName, b.Text, cats, b.CoverPath, b.NeedConfirmation, b.NeedFiles)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

// GetByID returns the benefit or ErrBenefitNotFound.
func (r *BenefitRepo) GetByID(ctx context.Context, id int64) (model.Benefit, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+benefitColumns+" FROM benefits WHERE id=?", id)
	return scanBenefit(row)
}

// List returns all benefits ordered by id.
func (r *BenefitRepo) List(ctx context.Context) ([]model.Benefit, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+benefitColumns+" FROM benefits ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Benefit{}
	for rows.Next() {
		b, err := scanBenefit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ExistingIDs returns the subset of ids that refer to stored benefits.
func (r *BenefitRepo) ExistingIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	found := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM benefits WHERE id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	return found, rows.Err()
}

// Update overwrites the editable fields of a benefit.  The cover is
// managed separately through SetCover.
func (r *BenefitRepo) Update(ctx context.Context, b model.Benefit) error {
	cats, err := encodeJSON(b.Categories)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE benefits SET name=?, card_name=?, text=?, categories=?, need_confirmation=?, need_files=?
		 WHERE id=?`,
		b.Name, b.CardName, b.Text, cats, b.NeedConfirmation, b.NeedFiles, b.ID)
	if err != nil {
		return err
	}
	return r.requireRow(ctx, res, b.ID)
}

// SetCover stores a new cover name, or clears it when path is nil.
func (r *BenefitRepo) SetCover(ctx context.Context, id int64, path *string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE benefits SET cover_path=? WHERE id=?", path, id)
	if err != nil {
		return err
	}
	return r.requireRow(ctx, res, id)
}

// Delete removes a benefit; its requests are removed by cascade.
func (r *BenefitRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM benefits WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBenefitNotFound
	}
	return nil
}

// requireRow distinguishes "no such row" from "nothing changed": MySQL
// reports zero affected rows when an UPDATE writes identical values.
func (r *BenefitRepo) requireRow(ctx context.Context, res sql.Result, id int64) error {
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM benefits WHERE id=?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBenefitNotFound
	}
	return err
}

func scanBenefit(row rowScanner) (model.Benefit, error) {
	var (
		b              model.Benefit
		cardName, text sql.NullString
		cover          sql.NullString
		cats           []byte
	)
	err := row.Scan(&b.ID, &b.Name, &cardName, &text, &cats, &cover, &b.NeedConfirmation, &b.NeedFiles)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Benefit{}, ErrBenefitNotFound
	}
	if err != nil {
		return model.Benefit{}, err
	}
	b.CardName = nullString(cardName)
	b.Text = nullString(text)
	b.CoverPath = nullString(cover)
	if b.Categories, err = decodeJSON[int](cats); err != nil {
		return model.Benefit{}, fmt.Errorf("benefit %d categories: %w", b.ID, err)
	}
	return b, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	buf := make([]byte, 0, 2*n-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '?')
	}
	return string(buf)
}
