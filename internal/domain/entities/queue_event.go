package entities

import "time"

// QueueEventType identifies a queue state change broadcast to subscribers
type QueueEventType string

const (
	QueueEventCheckedIn    QueueEventType = "patient_checked_in"
	QueueEventCalled       QueueEventType = "patient_called"
	QueueEventCompleted    QueueEventType = "patient_completed"
	QueueEventRecalculated QueueEventType = "positions_recalculated"
)

// QueueEvent is published whenever the waiting line changes. Position carries
// the position the transition observed (the prior position for a call or
// completion, the allocated one for a check-in).
type QueueEvent struct {
	ID        string         `json:"id"`
	Type      QueueEventType `json:"type"`
	PatientID string         `json:"patient_id,omitempty"`
	EntryID   string         `json:"entry_id,omitempty"`
	Position  int            `json:"position,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
