// Package queue defines the notification events exchanged over the
// message broker together with their publisher and consumer.
package queue

// NotificationQueue is the durable queue carrying every Event.
const NotificationQueue = "benefits.notifications"

// Kind identifies what happened and which email, if any, it produces.
type Kind string

const (
	KindLoginLink            Kind = "login.link"
	KindUserInvited          Kind = "user.invited"
	KindRequestSubmitted     Kind = "request.submitted"
	KindRequestStatusChanged Kind = "request.status_changed"
	KindPollOpened           Kind = "poll.opened"
)

// Event is published by the services and consumed by the mail worker.
// It carries enough information to render the email without querying
// the primary database.
type Event struct {
	Kind        Kind     `json:"kind"`
	To          []string `json:"to,omitempty"`
	Link        string   `json:"link,omitempty"`
	LinkTTLMin  int      `json:"link_ttl_min,omitempty"`
	RequestID   int64    `json:"request_id,omitempty"`
	BenefitName string   `json:"benefit_name,omitempty"`
	Requester   string   `json:"requester,omitempty"`
	StatusLabel string   `json:"status_label,omitempty"`
	PollVersion int64    `json:"poll_version,omitempty"`
	OccurredAt  string   `json:"occurred_at"`
}
