package entities

import "time"

// QueueStatus represents the status of a queue entry
type QueueStatus string

const (
	QueueStatusWaiting   QueueStatus = "waiting"
	QueueStatusCalled    QueueStatus = "called"
	QueueStatusCompleted QueueStatus = "completed"
	QueueStatusNoShow    QueueStatus = "no_show"
)

// IsActive reports whether an entry with this status occupies a position in
// the waiting line.
func (s QueueStatus) IsActive() bool {
	return s == QueueStatusWaiting || s == QueueStatusCalled
}

// IsTerminal reports whether this status permanently excludes the entry from
// the active set.
func (s QueueStatus) IsTerminal() bool {
	return s == QueueStatusCompleted || s == QueueStatusNoShow
}

// CanTransitionTo reports whether the status graph allows moving from s to
// next. Completing a waiting patient without calling them first is allowed:
// staff may finish a walk-up directly. Terminal statuses have no outgoing
// transitions.
func (s QueueStatus) CanTransitionTo(next QueueStatus) bool {
	switch s {
	case QueueStatusWaiting:
		return next == QueueStatusCalled || next == QueueStatusCompleted || next == QueueStatusNoShow
	case QueueStatusCalled:
		return next == QueueStatusCompleted || next == QueueStatusNoShow
	default:
		return false
	}
}

// QueueEntry is a patient's place in the waiting line. Among entries whose
// status is active, positions are unique and form the contiguous range 1..N.
// Phone is denormalized from the owning patient so the store can enforce
// phone uniqueness across active entries with a partial unique index.
type QueueEntry struct {
	ID                   string      `json:"id" db:"id"`
	PatientID            string      `json:"patient_id" db:"patient_id"`
	Phone                string      `json:"phone" db:"phone"`
	Position             int         `json:"position" db:"position"`
	Status               QueueStatus `json:"status" db:"status"`
	EstimatedWaitMinutes int         `json:"estimated_wait_minutes" db:"estimated_wait_minutes"`
	CheckedInAt          time.Time   `json:"checked_in_at" db:"checked_in_at"`
	CalledAt             *time.Time  `json:"called_at,omitempty" db:"called_at"`
	CompletedAt          *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
}

// EstimatedWait returns the wait estimate in minutes for a queue position
// given the fixed per-position wait: max(0, (position-1)*perPosition).
func EstimatedWait(position, perPosition int) int {
	if position <= 1 {
		return 0
	}
	return (position - 1) * perPosition
}
