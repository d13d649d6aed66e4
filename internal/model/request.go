package model

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the lifecycle state of a benefit request.  The numeric
// values are persisted in user_benefit_requests.status.
type RequestStatus int

const (
	StatusPending  RequestStatus = 1
	StatusApproved RequestStatus = 2
	StatusDenied   RequestStatus = 3
)

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusDenied
}

// Name returns the short status name.
func (s RequestStatus) Name() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusApproved:
		return "approved"
	case StatusDenied:
		return "denied"
	}
	return "unknown"
}

// Label is the human readable form shown to users, e.g. "Request approved".
func (s RequestStatus) Label() string { return "Request " + s.Name() }

// CanTransitionTo reports whether a request in status s may move to next.
// Only pending requests move, and only to a terminal status.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	return s == StatusPending && (next == StatusApproved || next == StatusDenied)
}

// BenefitRequest links a user with a benefit they asked for.  It is
// stored in the `user_benefit_requests` table.
//
// Fields:
//
//	ID        – primary key identifier.
//	UserID    – requesting user.
//	BenefitID – requested benefit.
//	CreatedAt – creation timestamp.
//	Files     – stored evidence file names in submission order.
//	Status    – pending, approved or denied.
type BenefitRequest struct {
	ID        int64         // user_benefit_requests.id
	UserID    uuid.UUID     // user_benefit_requests.user_id
	BenefitID int64         // user_benefit_requests.benefit_id
	CreatedAt time.Time     // user_benefit_requests.created_at
	Files     []string      // user_benefit_requests.files (JSON array)
	Status    RequestStatus // user_benefit_requests.status
}

// RequestRow is a request joined with the names needed by listings.
type RequestRow struct {
	Request     BenefitRequest
	BenefitName string
	UserName    *string
}
