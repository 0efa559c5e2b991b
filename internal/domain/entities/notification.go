package entities

import "time"

// NotificationKind represents the queue transition a message is about
type NotificationKind string

const (
	NotificationCheckIn  NotificationKind = "check_in"
	NotificationGetReady NotificationKind = "get_ready"
	NotificationCalled   NotificationKind = "called"
)

// NotificationStatus represents the delivery status
type NotificationStatus string

const (
	NotificationStatusPending   NotificationStatus = "pending"
	NotificationStatusSent      NotificationStatus = "sent"
	NotificationStatusDelivered NotificationStatus = "delivered"
	NotificationStatusFailed    NotificationStatus = "failed"
	NotificationStatusCancelled NotificationStatus = "cancelled"
)

// NotificationRecord is the append-only delivery log. Records start pending
// and are promoted by the dispatcher; a failed record never affects the queue
// transition that produced it.
type NotificationRecord struct {
	ID           string             `json:"id" db:"id"`
	PatientID    string             `json:"patient_id" db:"patient_id"`
	Kind         NotificationKind   `json:"kind" db:"kind"`
	Phone        string             `json:"phone" db:"phone"`
	Message      string             `json:"message" db:"message"`
	Status       NotificationStatus `json:"status" db:"status"`
	MessageID    *string            `json:"message_id,omitempty" db:"message_id"`
	ErrorMessage *string            `json:"error_message,omitempty" db:"error_message"`
	RetryCount   int                `json:"retry_count" db:"retry_count"`
	SentAt       *time.Time         `json:"sent_at,omitempty" db:"sent_at"`
	DeliveredAt  *time.Time         `json:"delivered_at,omitempty" db:"delivered_at"`
	FailedAt     *time.Time         `json:"failed_at,omitempty" db:"failed_at"`
	CreatedAt    time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" db:"updated_at"`
}
