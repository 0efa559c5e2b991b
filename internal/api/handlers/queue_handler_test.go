package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medwait/waitline/backend/internal/application/services"
	"github.com/medwait/waitline/backend/internal/domain/entities"
	"github.com/medwait/waitline/backend/internal/domain/repositories"
	apperrors "github.com/medwait/waitline/backend/pkg/errors"
)

// stubQueueService scripts each operation's return values.
type stubQueueService struct {
	checkInResult  *services.CheckInResult
	checkInErr     error
	positionInfo   *services.PositionInfo
	positionErr    error
	queue          []*entities.QueueEntry
	queueErr       error
	callNextResult *services.CallNextResult
	callNextErr    error
	completeErr    error
	stats          *repositories.QueueStats
	statsErr       error
}

func (s *stubQueueService) CheckIn(ctx context.Context, name, phone, appointmentTime string) (*services.CheckInResult, error) {
	return s.checkInResult, s.checkInErr
}

func (s *stubQueueService) GetPosition(ctx context.Context, patientID string) (*services.PositionInfo, error) {
	return s.positionInfo, s.positionErr
}

func (s *stubQueueService) GetQueue(ctx context.Context) ([]*entities.QueueEntry, error) {
	return s.queue, s.queueErr
}

func (s *stubQueueService) CallNext(ctx context.Context) (*services.CallNextResult, error) {
	return s.callNextResult, s.callNextErr
}

func (s *stubQueueService) Complete(ctx context.Context, patientID string) error {
	return s.completeErr
}

func (s *stubQueueService) Stats(ctx context.Context) (*repositories.QueueStats, error) {
	return s.stats, s.statsErr
}

func TestQueueHandler_CheckIn(t *testing.T) {
	handler := NewQueueHandler(&stubQueueService{
		checkInResult: &services.CheckInResult{
			PatientID:            "p1",
			Position:             2,
			EstimatedWaitMinutes: 15,
		},
	})

	body, _ := json.Marshal(map[string]string{"name": "Amara", "phone": "+2348010000001"})
	req := httptest.NewRequest(http.MethodPost, "/api/checkin", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.CheckIn(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got services.CheckInResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "p1", got.PatientID)
	assert.Equal(t, 2, got.Position)
	assert.Equal(t, 15, got.EstimatedWaitMinutes)
}

func TestQueueHandler_CheckIn_InvalidPayload(t *testing.T) {
	handler := NewQueueHandler(&stubQueueService{})

	req := httptest.NewRequest(http.MethodPost, "/api/checkin", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()

	handler.CheckIn(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueueHandler_ErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", apperrors.NewNotFoundError("gone"), http.StatusNotFound},
		{"validation", apperrors.NewValidationError("bad phone"), http.StatusBadRequest},
		{"conflict", apperrors.NewConflictError("already in line"), http.StatusConflict},
		{"store conflict", apperrors.NewStoreConflictError("raced", nil), http.StatusConflict},
		{"external", apperrors.NewExternalError("gateway down", nil), http.StatusBadGateway},
		{"internal", apperrors.NewInternalError("broken", nil), http.StatusInternalServerError},
		{"plain error", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewQueueHandler(&stubQueueService{checkInErr: tt.err})

			body, _ := json.Marshal(map[string]string{"name": "Amara", "phone": "+2348010000001"})
			req := httptest.NewRequest(http.MethodPost, "/api/checkin", bytes.NewReader(body))
			rec := httptest.NewRecorder()

			handler.CheckIn(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var payload map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
			assert.NotEmpty(t, payload["error"])
		})
	}
}

func TestQueueHandler_CallNext_EmptyLine(t *testing.T) {
	handler := NewQueueHandler(&stubQueueService{
		callNextResult: &services.CallNextResult{Success: false},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/queue/call-next", nil)
	rec := httptest.NewRecorder()

	handler.CallNext(rec, req)

	// An empty line is a normal outcome, not an error status.
	assert.Equal(t, http.StatusOK, rec.Code)

	var got services.CallNextResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.Success)
	assert.Nil(t, got.Entry)
}

func TestQueueHandler_GetPosition(t *testing.T) {
	now := time.Now()
	handler := NewQueueHandler(&stubQueueService{
		positionInfo: &services.PositionInfo{
			Position:             3,
			Status:               entities.QueueStatusWaiting,
			EstimatedWaitMinutes: 30,
			CheckedInAt:          now,
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/patients/p1/position", nil)
	req.SetPathValue("id", "p1")
	rec := httptest.NewRecorder()

	handler.GetPosition(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var got services.PositionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 3, got.Position)
	assert.Equal(t, entities.QueueStatusWaiting, got.Status)
}

func TestQueueHandler_GetPosition_MissingID(t *testing.T) {
	handler := NewQueueHandler(&stubQueueService{})

	req := httptest.NewRequest(http.MethodGet, "/api/patients//position", nil)
	rec := httptest.NewRecorder()

	handler.GetPosition(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueueHandler_GetQueue(t *testing.T) {
	handler := NewQueueHandler(&stubQueueService{
		queue: []*entities.QueueEntry{
			{ID: "e1", Position: 1, Status: entities.QueueStatusCalled},
			{ID: "e2", Position: 2, Status: entities.QueueStatusWaiting},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	rec := httptest.NewRecorder()

	handler.GetQueue(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Entries []*entities.QueueEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Entries, 2)
	assert.Equal(t, 1, got.Entries[0].Position)
}

func TestQueueHandler_Complete(t *testing.T) {
	handler := NewQueueHandler(&stubQueueService{})

	req := httptest.NewRequest(http.MethodPost, "/api/patients/p1/complete", nil)
	req.SetPathValue("id", "p1")
	rec := httptest.NewRecorder()

	handler.Complete(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestQueueHandler_Stats(t *testing.T) {
	handler := NewQueueHandler(&stubQueueService{
		stats: &repositories.QueueStats{
			WaitingCount:       4,
			CalledCount:        1,
			CompletedCount:     12,
			AverageWaitMinutes: 22.5,
			LongestWaitMinutes: 61,
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()

	handler.Stats(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var got repositories.QueueStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 4, got.WaitingCount)
	assert.Equal(t, 22.5, got.AverageWaitMinutes)
}
