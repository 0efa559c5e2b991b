package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/medwait/waitline/backend/internal/domain/entities"
	"github.com/medwait/waitline/backend/internal/domain/repositories"
	"github.com/medwait/waitline/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/medwait/waitline/backend/pkg/errors"
)

// NotificationAdapter implements the NotificationRepository interface
type NotificationAdapter struct {
	db *sqlx.DB
}

// NewNotificationAdapter creates a new notification adapter
func NewNotificationAdapter(client *postgres.Client) repositories.NotificationRepository {
	return &NotificationAdapter{
		db: sqlx.NewDb(client.DB(), "postgres"),
	}
}

// Create appends a new notification record
func (a *NotificationAdapter) Create(ctx context.Context, record *entities.NotificationRecord) error {
	query := `
		INSERT INTO notification_records
		(id, patient_id, kind, phone, message, status, message_id, error_message,
		 retry_count, sent_at, delivered_at, failed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := a.db.ExecContext(ctx, query,
		record.ID, record.PatientID, record.Kind, record.Phone, record.Message,
		record.Status, record.MessageID, record.ErrorMessage, record.RetryCount,
		record.SentAt, record.DeliveredAt, record.FailedAt, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewInternalError("failed to create notification record", err)
	}
	return nil
}

// Update persists a record's delivery status fields
func (a *NotificationAdapter) Update(ctx context.Context, record *entities.NotificationRecord) error {
	query := `
		UPDATE notification_records
		SET status = $1, message_id = $2, error_message = $3, retry_count = $4,
		    sent_at = $5, delivered_at = $6, failed_at = $7, updated_at = $8
		WHERE id = $9
	`
	result, err := a.db.ExecContext(ctx, query,
		record.Status, record.MessageID, record.ErrorMessage, record.RetryCount,
		record.SentAt, record.DeliveredAt, record.FailedAt, record.UpdatedAt, record.ID,
	)
	if err != nil {
		return apperrors.NewInternalError("failed to update notification record", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("notification record %s not found", record.ID))
	}
	return nil
}

// ListPending returns up to limit pending records oldest first
func (a *NotificationAdapter) ListPending(ctx context.Context, limit int) ([]*entities.NotificationRecord, error) {
	return a.listByStatus(ctx, entities.NotificationStatusPending, limit)
}

// ListSent returns up to limit sent records awaiting a delivery status
func (a *NotificationAdapter) ListSent(ctx context.Context, limit int) ([]*entities.NotificationRecord, error) {
	return a.listByStatus(ctx, entities.NotificationStatusSent, limit)
}

func (a *NotificationAdapter) listByStatus(ctx context.Context, status entities.NotificationStatus, limit int) ([]*entities.NotificationRecord, error) {
	var records []*entities.NotificationRecord
	query := `
		SELECT id, patient_id, kind, phone, message, status, message_id, error_message,
		       retry_count, sent_at, delivered_at, failed_at, created_at, updated_at
		FROM notification_records
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	if err := a.db.SelectContext(ctx, &records, query, status, limit); err != nil {
		return nil, apperrors.NewInternalError("failed to list notification records", err)
	}
	return records, nil
}

// HasRecent reports whether a record of the given kind exists for the patient
// within the window
func (a *NotificationAdapter) HasRecent(ctx context.Context, patientID string, kind entities.NotificationKind, window time.Duration) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notification_records
			WHERE patient_id = $1 AND kind = $2 AND created_at >= $3
		)
	`
	since := time.Now().Add(-window)
	err := a.db.GetContext(ctx, &exists, query, patientID, kind, since)
	if err != nil && err != sql.ErrNoRows {
		return false, apperrors.NewInternalError("failed to check recent notifications", err)
	}
	return exists, nil
}
