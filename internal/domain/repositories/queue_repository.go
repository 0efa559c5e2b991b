package repositories

import (
	"context"
	"time"

	"github.com/medwait/waitline/backend/internal/domain/entities"
)

// QueueRepository defines the interface for waiting-line data operations.
// The store backing it must enforce position and phone uniqueness across the
// active statuses (waiting, called) so that concurrent writers fail with a
// store conflict instead of silently corrupting the line.
type QueueRepository interface {
	// CreateWithPatient inserts the patient and their queue entry in one
	// transaction; both commit together or not at all.
	CreateWithPatient(ctx context.Context, patient *entities.Patient, entry *entities.QueueEntry) error

	// GetEntry retrieves a queue entry by ID
	GetEntry(ctx context.Context, id string) (*entities.QueueEntry, error)

	// GetEntryByPatient retrieves the most recent queue entry for a patient
	GetEntryByPatient(ctx context.Context, patientID string) (*entities.QueueEntry, error)

	// GetPatient retrieves a patient by ID
	GetPatient(ctx context.Context, id string) (*entities.Patient, error)

	// ActiveEntryByPhone retrieves the active entry whose patient has the
	// given phone, or a not found error when the phone is not in the line
	ActiveEntryByPhone(ctx context.Context, phone string) (*entities.QueueEntry, error)

	// MaxActivePosition returns the highest position held by an active entry,
	// or 0 for an empty line
	MaxActivePosition(ctx context.Context) (int, error)

	// ListActive returns all active entries ordered by position ascending
	ListActive(ctx context.Context) ([]*entities.QueueEntry, error)

	// FirstWaiting returns the waiting entry with the smallest position, or a
	// not found error when nobody is waiting
	FirstWaiting(ctx context.Context) (*entities.QueueEntry, error)

	// UpdateStatus persists a single entry's status and status timestamps
	UpdateStatus(ctx context.Context, entry *entities.QueueEntry) error

	// RenumberActive walks the active set by position ascending inside one
	// serializable transaction, reassigns positions 1..N, recomputes wait
	// estimates, and returns the entries whose position actually changed.
	RenumberActive(ctx context.Context, waitPerPosition int) ([]*entities.QueueEntry, error)

	// Stats aggregates the line counts plus visit-duration figures over
	// entries completed within the rolling window
	Stats(ctx context.Context, window time.Duration) (*QueueStats, error)
}

// QueueStats holds the aggregate figures exposed by the stats operation
type QueueStats struct {
	WaitingCount       int     `json:"waiting_count"`
	CalledCount        int     `json:"called_count"`
	CompletedCount     int     `json:"completed_count"`
	AverageWaitMinutes float64 `json:"average_wait_minutes"`
	LongestWaitMinutes float64 `json:"longest_wait_minutes"`
}
