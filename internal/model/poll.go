package model

import (
	"time"

	"github.com/google/uuid"
)

// PollStatus is the single row of the `poll_status` table.  Version is
// bumped on every change so concurrent writers can be told apart.
type PollStatus struct {
	IsOpen    bool
	Version   int64
	UpdatedAt time.Time
}

// PollResult is one satisfaction survey submission.
type PollResult struct {
	ID               int64     // poll_results.id
	UserID           uuid.UUID // poll_results.user_id
	CreatedAt        time.Time // poll_results.created_at
	SelectedBenefits []int64   // poll_results.selected_benefits (JSON array)
	SatisfactionRate int       // poll_results.satisfaction_rate, 0..5
}
