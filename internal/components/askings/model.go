// Package askings implements booking requests ("askings") between a requester and a
// mentor: creation with a one-hour slot, role-gated reads, the mentor's
// accept/decline transition, updates and deletion.
package askings

import "time"

// States an asking usually moves through. Transition and Update store any
// string verbatim, so these are conventions, not an enforced set.
const (
	StatePending  = "pending"
	StateAccepted = "accepted"
	StateDeclined = "declined"
)

// SlotDuration is the fixed length of a booked session.
const SlotDuration = time.Hour

// PseudoNotFound stands in for a display name that cannot be resolved.
const PseudoNotFound = "Pseudo not found"

// Asking is a booking request.
type Asking struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UserID      string    `json:"user_id"`
	MentorID    string    `json:"mentor_id"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PartyRef names one side of an asking in read views.
type PartyRef struct {
	ID     string `json:"id,omitempty"`
	Pseudo string `json:"pseudo"`
}

// Detail is the read view with both parties expanded to display names.
type Detail struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	State       string    `json:"state"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	User        PartyRef  `json:"user"`
	Mentor      PartyRef  `json:"mentor"`
}

// CreateInput carries the caller-supplied fields of a new asking.
type CreateInput struct {
	Title       string
	Description string
	StartDate   time.Time
	MentorID    string
}
