package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/benefits-cafeteria/internal/model"
)

// CategoryRepo reads the eligibility tiers.
type CategoryRepo struct{ db *sql.DB }

func NewCategoryRepo(db *sql.DB) *CategoryRepo { return &CategoryRepo{db: db} }

// List returns every category ordered by id.
func (r *CategoryRepo) List(ctx context.Context) ([]model.Category, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, availability_days FROM categories ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Category{}
	for rows.Next() {
		var (
			c    model.Category
			days sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.Name, &days); err != nil {
			return nil, err
		}
		if days.Valid {
			d := int(days.Int64)
			c.AvailabilityDays = &d
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
