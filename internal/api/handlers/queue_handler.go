package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/medwait/waitline/backend/internal/application/services"
	"github.com/medwait/waitline/backend/internal/domain/entities"
	"github.com/medwait/waitline/backend/internal/domain/repositories"
	apperrors "github.com/medwait/waitline/backend/pkg/errors"
)

// QueueService defines the interface for waiting-line operations
type QueueService interface {
	CheckIn(ctx context.Context, name, phone, appointmentTime string) (*services.CheckInResult, error)
	GetPosition(ctx context.Context, patientID string) (*services.PositionInfo, error)
	GetQueue(ctx context.Context) ([]*entities.QueueEntry, error)
	CallNext(ctx context.Context) (*services.CallNextResult, error)
	Complete(ctx context.Context, patientID string) error
	Stats(ctx context.Context) (*repositories.QueueStats, error)
}

// QueueHandler handles waiting-line requests
type QueueHandler struct {
	service QueueService
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(service QueueService) *QueueHandler {
	return &QueueHandler{
		service: service,
	}
}

type checkInRequest struct {
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	AppointmentTime string `json:"appointment_time,omitempty"`
}

// CheckIn handles POST /api/checkin
func (h *QueueHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	result, err := h.service.CheckIn(r.Context(), req.Name, req.Phone, req.AppointmentTime)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, result)
}

// GetPosition handles GET /api/patients/{id}/position
func (h *QueueHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("id")
	if patientID == "" {
		respondWithError(w, http.StatusBadRequest, "patient ID is required")
		return
	}

	info, err := h.service.GetPosition(r.Context(), patientID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, info)
}

// GetQueue handles GET /api/queue
func (h *QueueHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.GetQueue(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
	})
}

// CallNext handles POST /api/queue/call-next
func (h *QueueHandler) CallNext(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.CallNext(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// Complete handles POST /api/patients/{id}/complete
func (h *QueueHandler) Complete(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("id")
	if patientID == "" {
		respondWithError(w, http.StatusBadRequest, "patient ID is required")
		return
	}

	if err := h.service.Complete(r.Context(), patientID); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// Stats handles GET /api/stats
func (h *QueueHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

// respondWithAppError maps the application error taxonomy onto HTTP statuses
func respondWithAppError(w http.ResponseWriter, err error) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		switch appErr.Type {
		case apperrors.ErrorTypeNotFound:
			respondWithError(w, http.StatusNotFound, appErr.Message)
		case apperrors.ErrorTypeValidation:
			respondWithError(w, http.StatusBadRequest, appErr.Message)
		case apperrors.ErrorTypeConflict, apperrors.ErrorTypeStoreConflict:
			respondWithError(w, http.StatusConflict, appErr.Message)
		case apperrors.ErrorTypeExternal:
			respondWithError(w, http.StatusBadGateway, appErr.Message)
		default:
			respondWithError(w, http.StatusInternalServerError, appErr.Message)
		}
		return
	}
	respondWithError(w, http.StatusInternalServerError, err.Error())
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
