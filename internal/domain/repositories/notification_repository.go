package repositories

import (
	"context"
	"time"

	"github.com/medwait/waitline/backend/internal/domain/entities"
)

// NotificationRepository defines the interface for the delivery log. Records
// are append-only: they are created once per send and only their delivery
// status fields change afterwards.
type NotificationRepository interface {
	// Create appends a new notification record
	Create(ctx context.Context, record *entities.NotificationRecord) error

	// Update persists a record's delivery status fields
	Update(ctx context.Context, record *entities.NotificationRecord) error

	// ListPending returns up to limit pending records oldest first
	ListPending(ctx context.Context, limit int) ([]*entities.NotificationRecord, error)

	// ListSent returns up to limit sent records awaiting a delivery status
	ListSent(ctx context.Context, limit int) ([]*entities.NotificationRecord, error)

	// HasRecent reports whether a record of the given kind exists for the
	// patient within the window, regardless of its delivery outcome
	HasRecent(ctx context.Context, patientID string, kind entities.NotificationKind, window time.Duration) (bool, error)
}
