package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medwait/waitline/backend/internal/domain/entities"
	"github.com/medwait/waitline/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/medwait/waitline/backend/pkg/errors"
)

func setupNotificationAdapter(t *testing.T) (*NotificationAdapter, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	adapter := NewNotificationAdapter(postgres.NewClientFromDB(mockDB)).(*NotificationAdapter)
	return adapter, mock
}

func TestNotificationAdapter_Create(t *testing.T) {
	adapter, mock := setupNotificationAdapter(t)

	mock.ExpectExec(`INSERT INTO notification_records`).WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now()
	record := &entities.NotificationRecord{
		ID:        "n1",
		PatientID: "p1",
		Kind:      entities.NotificationCheckIn,
		Phone:     "+2348010000001",
		Message:   "Hi Amara, you're checked in.",
		Status:    entities.NotificationStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	require.NoError(t, adapter.Create(context.Background(), record))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationAdapter_Update_NotFound(t *testing.T) {
	adapter, mock := setupNotificationAdapter(t)

	mock.ExpectExec(`UPDATE notification_records`).WillReturnResult(sqlmock.NewResult(0, 0))

	record := &entities.NotificationRecord{ID: "missing", Status: entities.NotificationStatusSent}
	err := adapter.Update(context.Background(), record)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestNotificationAdapter_ListPending(t *testing.T) {
	adapter, mock := setupNotificationAdapter(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "patient_id", "kind", "phone", "message", "status", "message_id",
		"error_message", "retry_count", "sent_at", "delivered_at", "failed_at",
		"created_at", "updated_at",
	}).
		AddRow("n1", "p1", "check_in", "+2348010000001", "msg", "pending", nil, nil, 0, nil, nil, nil, now, now).
		AddRow("n2", "p2", "called", "+2348010000002", "msg", "pending", nil, nil, 2, nil, nil, nil, now, now)

	mock.ExpectQuery(`SELECT .+ FROM notification_records`).
		WithArgs(string(entities.NotificationStatusPending), 50).
		WillReturnRows(rows)

	records, err := adapter.ListPending(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, entities.NotificationCheckIn, records[0].Kind)
	assert.Equal(t, 2, records[1].RetryCount)
	assert.Nil(t, records[0].MessageID)
}

func TestNotificationAdapter_HasRecent(t *testing.T) {
	adapter, mock := setupNotificationAdapter(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	recent, err := adapter.HasRecent(context.Background(), "p1", entities.NotificationGetReady, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, recent)
}
