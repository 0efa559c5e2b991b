package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"github.com/medwait/waitline/backend/internal/domain/entities"
	"github.com/medwait/waitline/backend/internal/domain/repositories"
	"github.com/medwait/waitline/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/medwait/waitline/backend/pkg/errors"
)

var activeStatuses = []string{
	string(entities.QueueStatusWaiting),
	string(entities.QueueStatusCalled),
}

var entryColumns = []interface{}{
	"id", "patient_id", "phone", "position", "status",
	"estimated_wait_minutes", "checked_in_at", "called_at", "completed_at",
}

// QueueAdapter implements the QueueRepository interface on PostgreSQL. The
// schema carries partial unique indexes on (position) and (phone) restricted
// to active statuses; violations surface here as typed conflicts.
type QueueAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewQueueAdapter creates a new queue adapter
func NewQueueAdapter(client *postgres.Client) repositories.QueueRepository {
	return &QueueAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// CreateWithPatient inserts the patient and their queue entry in one transaction
func (a *QueueAdapter) CreateWithPatient(ctx context.Context, patient *entities.Patient, entry *entities.QueueEntry) error {
	tx, err := a.client.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	patientQuery, patientArgs, err := a.db.Insert("patients").Rows(goqu.Record{
		"id":         patient.ID,
		"name":       patient.Name,
		"phone":      patient.Phone,
		"created_at": patient.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build patient insert", err)
	}

	if _, err := tx.ExecContext(ctx, patientQuery, patientArgs...); err != nil {
		return classifyWriteError("failed to create patient", err)
	}

	entryQuery, entryArgs, err := a.db.Insert("queue_entries").Rows(goqu.Record{
		"id":                     entry.ID,
		"patient_id":             entry.PatientID,
		"phone":                  entry.Phone,
		"position":               entry.Position,
		"status":                 entry.Status,
		"estimated_wait_minutes": entry.EstimatedWaitMinutes,
		"checked_in_at":          entry.CheckedInAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build entry insert", err)
	}

	if _, err := tx.ExecContext(ctx, entryQuery, entryArgs...); err != nil {
		return classifyWriteError("failed to create queue entry", err)
	}

	if err := tx.Commit(); err != nil {
		return classifyWriteError("failed to commit check-in", err)
	}

	return nil
}

// GetEntry retrieves a queue entry by ID
func (a *QueueAdapter) GetEntry(ctx context.Context, id string) (*entities.QueueEntry, error) {
	return a.getOne(ctx, goqu.Ex{"id": id}, fmt.Sprintf("queue entry %s not found", id))
}

// GetEntryByPatient retrieves the most recent queue entry for a patient
func (a *QueueAdapter) GetEntryByPatient(ctx context.Context, patientID string) (*entities.QueueEntry, error) {
	query, args, err := a.db.Select(entryColumns...).
		From("queue_entries").
		Where(goqu.Ex{"patient_id": patientID}).
		Order(goqu.I("checked_in_at").Desc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	entry, err := a.scanEntry(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no queue entry for patient %s", patientID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get queue entry", err)
	}
	return entry, nil
}

// GetPatient retrieves a patient by ID
func (a *QueueAdapter) GetPatient(ctx context.Context, id string) (*entities.Patient, error) {
	query, args, err := a.db.Select("id", "name", "phone", "created_at").
		From("patients").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	patient := &entities.Patient{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&patient.ID, &patient.Name, &patient.Phone, &patient.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get patient", err)
	}
	return patient, nil
}

// ActiveEntryByPhone retrieves the active entry holding the given phone
func (a *QueueAdapter) ActiveEntryByPhone(ctx context.Context, phone string) (*entities.QueueEntry, error) {
	return a.getOne(ctx, goqu.Ex{"phone": phone, "status": activeStatuses},
		fmt.Sprintf("no active entry for phone %s", phone))
}

// MaxActivePosition returns the highest active position, or 0 for an empty line
func (a *QueueAdapter) MaxActivePosition(ctx context.Context) (int, error) {
	query, args, err := a.db.Select(goqu.COALESCE(goqu.MAX("position"), 0)).
		From("queue_entries").
		Where(goqu.Ex{"status": activeStatuses}).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build query", err)
	}

	var max int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&max); err != nil {
		return 0, apperrors.NewInternalError("failed to read max position", err)
	}
	return max, nil
}

// ListActive returns all active entries ordered by position ascending
func (a *QueueAdapter) ListActive(ctx context.Context) ([]*entities.QueueEntry, error) {
	query, args, err := a.db.Select(entryColumns...).
		From("queue_entries").
		Where(goqu.Ex{"status": activeStatuses}).
		Order(goqu.I("position").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list active entries", err)
	}
	defer rows.Close()

	var entries []*entities.QueueEntry
	for rows.Next() {
		entry, err := a.scanEntry(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan queue entry", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// FirstWaiting returns the waiting entry with the smallest position
func (a *QueueAdapter) FirstWaiting(ctx context.Context) (*entities.QueueEntry, error) {
	query, args, err := a.db.Select(entryColumns...).
		From("queue_entries").
		Where(goqu.Ex{"status": string(entities.QueueStatusWaiting)}).
		Order(goqu.I("position").Asc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	entry, err := a.scanEntry(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("no patients waiting")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get first waiting entry", err)
	}
	return entry, nil
}

// UpdateStatus persists a single entry's status and status timestamps
func (a *QueueAdapter) UpdateStatus(ctx context.Context, entry *entities.QueueEntry) error {
	query, args, err := a.db.Update("queue_entries").
		Set(goqu.Record{
			"status":       entry.Status,
			"called_at":    entry.CalledAt,
			"completed_at": entry.CompletedAt,
		}).
		Where(goqu.Ex{"id": entry.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return classifyWriteError("failed to update queue entry", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("queue entry %s not found", entry.ID))
	}
	return nil
}

// RenumberActive reassigns contiguous positions 1..N to the active set inside
// one serializable transaction. Rows are locked for the whole read+write walk
// so a concurrent check-in cannot reuse a position mid-renumber. Entries whose
// position is already correct are not rewritten.
func (a *QueueAdapter) RenumberActive(ctx context.Context, waitPerPosition int) ([]*entities.QueueEntry, error) {
	tx, err := a.client.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	selectQuery, selectArgs, err := a.db.Select(entryColumns...).
		From("queue_entries").
		Where(goqu.Ex{"status": activeStatuses}).
		Order(goqu.I("position").Asc()).
		ForUpdate(goqu.Wait).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build renumber query", err)
	}

	rows, err := tx.QueryContext(ctx, selectQuery, selectArgs...)
	if err != nil {
		return nil, classifyWriteError("failed to read active entries", err)
	}

	var active []*entities.QueueEntry
	for rows.Next() {
		entry, err := a.scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, apperrors.NewInternalError("failed to scan queue entry", err)
		}
		active = append(active, entry)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, apperrors.NewInternalError("failed to read active entries", err)
	}
	rows.Close()

	var changed []*entities.QueueEntry
	for i, entry := range active {
		newPosition := i + 1
		if entry.Position == newPosition {
			continue
		}

		entry.Position = newPosition
		entry.EstimatedWaitMinutes = entities.EstimatedWait(newPosition, waitPerPosition)

		updateQuery, updateArgs, err := a.db.Update("queue_entries").
			Set(goqu.Record{
				"position":               entry.Position,
				"estimated_wait_minutes": entry.EstimatedWaitMinutes,
			}).
			Where(goqu.Ex{"id": entry.ID}).
			ToSQL()
		if err != nil {
			return nil, apperrors.NewInternalError("failed to build renumber update", err)
		}

		if _, err := tx.ExecContext(ctx, updateQuery, updateArgs...); err != nil {
			return nil, classifyWriteError("failed to renumber queue entry", err)
		}

		changed = append(changed, entry)
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyWriteError("failed to commit renumber", err)
	}

	return changed, nil
}

// Stats aggregates line counts and visit-duration figures
func (a *QueueAdapter) Stats(ctx context.Context, window time.Duration) (*repositories.QueueStats, error) {
	stats := &repositories.QueueStats{}

	countQuery, countArgs, err := a.db.Select(
		goqu.COUNT(goqu.Case().
			When(goqu.C("status").Eq(string(entities.QueueStatusWaiting)), 1)),
		goqu.COUNT(goqu.Case().
			When(goqu.C("status").Eq(string(entities.QueueStatusCalled)), 1)),
	).From("queue_entries").ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build stats query", err)
	}

	if err := a.client.DB().QueryRowContext(ctx, countQuery, countArgs...).
		Scan(&stats.WaitingCount, &stats.CalledCount); err != nil {
		return nil, apperrors.NewInternalError("failed to read queue counts", err)
	}

	since := time.Now().Add(-window)
	completedQuery, completedArgs, err := a.db.Select(
		goqu.COUNT("id"),
		goqu.COALESCE(goqu.L("AVG(EXTRACT(EPOCH FROM (completed_at - checked_in_at)) / 60)"), 0),
		goqu.COALESCE(goqu.L("MAX(EXTRACT(EPOCH FROM (completed_at - checked_in_at)) / 60)"), 0),
	).From("queue_entries").
		Where(
			goqu.C("status").Eq(string(entities.QueueStatusCompleted)),
			goqu.C("completed_at").Gte(since),
		).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build stats query", err)
	}

	if err := a.client.DB().QueryRowContext(ctx, completedQuery, completedArgs...).
		Scan(&stats.CompletedCount, &stats.AverageWaitMinutes, &stats.LongestWaitMinutes); err != nil {
		return nil, apperrors.NewInternalError("failed to read completion stats", err)
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (a *QueueAdapter) getOne(ctx context.Context, where goqu.Ex, notFoundMsg string) (*entities.QueueEntry, error) {
	query, args, err := a.db.Select(entryColumns...).
		From("queue_entries").
		Where(where).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	entry, err := a.scanEntry(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(notFoundMsg)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get queue entry", err)
	}
	return entry, nil
}

func (a *QueueAdapter) scanEntry(row rowScanner) (*entities.QueueEntry, error) {
	entry := &entities.QueueEntry{}
	var calledAt, completedAt sql.NullTime

	err := row.Scan(
		&entry.ID,
		&entry.PatientID,
		&entry.Phone,
		&entry.Position,
		&entry.Status,
		&entry.EstimatedWaitMinutes,
		&entry.CheckedInAt,
		&calledAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if calledAt.Valid {
		entry.CalledAt = &calledAt.Time
	}
	if completedAt.Valid {
		entry.CompletedAt = &completedAt.Time
	}
	return entry, nil
}

// classifyWriteError maps postgres constraint and serialization failures onto
// the application error taxonomy. The active-phone index means the same
// patient phone raced into the line twice; the active-position index and
// serialization failures mean a concurrent writer won and the caller may retry.
func classifyWriteError(message string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			if pqErr.Constraint == "queue_entries_active_phone_idx" {
				return apperrors.NewConflictError("phone number already has an active queue entry")
			}
			return apperrors.NewStoreConflictError(message, err)
		case "40001": // serialization_failure
			return apperrors.NewStoreConflictError(message, err)
		}
	}
	return apperrors.NewInternalError(message, err)
}
