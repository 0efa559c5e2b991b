package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medwait/waitline/backend/internal/domain/entities"
	"github.com/medwait/waitline/backend/internal/domain/providers"
	"github.com/medwait/waitline/backend/internal/domain/repositories"
	"github.com/medwait/waitline/backend/internal/infrastructure/observability"
	"github.com/medwait/waitline/backend/pkg/config"
	apperrors "github.com/medwait/waitline/backend/pkg/errors"
)

var normalizedPhonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// QueueService owns the waiting line: it allocates positions at check-in,
// enacts the status state machine, and renumbers the active set whenever an
// entry leaves it. It is the only writer of queue entry status.
//
// Notification and event side effects are best-effort: their failures are
// logged and never surface to the caller of a queue mutation.
type QueueService struct {
	repo          repositories.QueueRepository
	notifications *NotificationService
	eventBus      providers.EventBus
	metrics       *observability.Metrics
	cfg           config.QueueConfig
}

// NewQueueService creates a new queue service. notifications, eventBus and
// metrics may be nil; the queue then runs without those side effects.
func NewQueueService(
	repo repositories.QueueRepository,
	notifications *NotificationService,
	eventBus providers.EventBus,
	metrics *observability.Metrics,
	cfg config.QueueConfig,
) *QueueService {
	return &QueueService{
		repo:          repo,
		notifications: notifications,
		eventBus:      eventBus,
		metrics:       metrics,
		cfg:           cfg,
	}
}

// CheckInResult is returned to a freshly checked-in patient
type CheckInResult struct {
	PatientID            string `json:"patient_id"`
	Position             int    `json:"position"`
	EstimatedWaitMinutes int    `json:"estimated_wait_minutes"`
}

// CallNextResult reports the outcome of a call-next operation. An empty line
// is a normal outcome, not an error: Success is false and Entry is nil.
type CallNextResult struct {
	Success bool                `json:"success"`
	Entry   *entities.QueueEntry `json:"entry,omitempty"`
}

// PositionInfo is a patient-facing view of their queue entry
type PositionInfo struct {
	Position             int                  `json:"position"`
	Status               entities.QueueStatus `json:"status"`
	EstimatedWaitMinutes int                  `json:"estimated_wait_minutes"`
	CheckedInAt          time.Time            `json:"checked_in_at"`
	CalledAt             *time.Time           `json:"called_at,omitempty"`
	CompletedAt          *time.Time           `json:"completed_at,omitempty"`
}

// CheckIn validates the patient, allocates the next free position and creates
// the patient and queue entry in one transaction. Losing the active-position
// unique constraint to a concurrent check-in re-runs allocation a bounded
// number of times; losing the active-phone constraint means this phone raced
// itself into the line and is a conflict for the caller.
func (s *QueueService) CheckIn(ctx context.Context, name, phone, appointmentTime string) (*CheckInResult, error) {
	ctx, span := observability.StartSpan(ctx, "QueueService.CheckIn")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name must not be empty")
	}

	normalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	if appointmentTime != "" {
		if _, err := time.Parse(time.RFC3339, appointmentTime); err != nil {
			return nil, apperrors.NewValidationError("appointment time must be RFC3339")
		}
	}

	if _, err := s.repo.ActiveEntryByPhone(ctx, normalized); err == nil {
		return nil, apperrors.NewConflictError("phone number already has an active queue entry")
	} else if !apperrors.IsNotFound(err) {
		return nil, err
	}

	var (
		patient *entities.Patient
		entry   *entities.QueueEntry
	)

	attempts := s.cfg.AllocateRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		maxPosition, err := s.repo.MaxActivePosition(ctx)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		position := maxPosition + 1
		patient = &entities.Patient{
			ID:        uuid.New().String(),
			Name:      name,
			Phone:     normalized,
			CreatedAt: now,
		}
		entry = &entities.QueueEntry{
			ID:                   uuid.New().String(),
			PatientID:            patient.ID,
			Phone:                normalized,
			Position:             position,
			Status:               entities.QueueStatusWaiting,
			EstimatedWaitMinutes: entities.EstimatedWait(position, s.cfg.WaitPerPositionMinutes),
			CheckedInAt:          now,
		}

		err = s.repo.CreateWithPatient(ctx, patient, entry)
		if err == nil {
			lastErr = nil
			break
		}
		if apperrors.IsStoreConflict(err) {
			// A concurrent check-in claimed this position first
			lastErr = err
			continue
		}
		return nil, err
	}
	if lastErr != nil {
		return nil, lastErr
	}

	if s.metrics != nil {
		observability.RecordTransition(ctx, s.metrics, "", string(entities.QueueStatusWaiting))
	}

	s.notify(ctx, func() error {
		return s.notifications.EnqueueCheckIn(ctx, &NotificationContext{
			PatientID:   patient.ID,
			PatientName: patient.Name,
			Phone:       patient.Phone,
			Position:    entry.Position,
			WaitMinutes: entry.EstimatedWaitMinutes,
		})
	})
	s.publish(ctx, entities.QueueEventCheckedIn, patient.ID, entry.ID, entry.Position)

	observability.LoggerFromContext(ctx).Info().
		Str("patient_id", patient.ID).
		Int("position", entry.Position).
		Msg("patient checked in")

	return &CheckInResult{
		PatientID:            patient.ID,
		Position:             entry.Position,
		EstimatedWaitMinutes: entry.EstimatedWaitMinutes,
	}, nil
}

// CallNext moves the waiting entry with the smallest position to called. An
// empty line yields a non-error result with Success false and no mutation.
func (s *QueueService) CallNext(ctx context.Context) (*CallNextResult, error) {
	ctx, span := observability.StartSpan(ctx, "QueueService.CallNext")
	defer span.End()

	entry, err := s.repo.FirstWaiting(ctx)
	if apperrors.IsNotFound(err) {
		return &CallNextResult{Success: false}, nil
	}
	if err != nil {
		return nil, err
	}

	if !entry.Status.CanTransitionTo(entities.QueueStatusCalled) {
		return nil, apperrors.NewInternalError("illegal transition to called", nil)
	}

	priorPosition := entry.Position
	now := time.Now()
	entry.Status = entities.QueueStatusCalled
	entry.CalledAt = &now

	if err := s.repo.UpdateStatus(ctx, entry); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		observability.RecordTransition(ctx, s.metrics, string(entities.QueueStatusWaiting), string(entities.QueueStatusCalled))
	}

	s.notify(ctx, func() error {
		name := s.patientName(ctx, entry.PatientID)
		return s.notifications.EnqueueCalled(ctx, &NotificationContext{
			PatientID:   entry.PatientID,
			PatientName: name,
			Phone:       entry.Phone,
			Position:    priorPosition,
		})
	})
	s.publish(ctx, entities.QueueEventCalled, entry.PatientID, entry.ID, priorPosition)

	observability.LoggerFromContext(ctx).Info().
		Str("patient_id", entry.PatientID).
		Int("position", priorPosition).
		Msg("patient called")

	return &CallNextResult{Success: true, Entry: entry}, nil
}

// Complete moves a patient's active entry to completed and renumbers the
// remaining active set. Completing a waiting patient who was never called is
// allowed. A patient with no active entry is not found.
func (s *QueueService) Complete(ctx context.Context, patientID string) error {
	ctx, span := observability.StartSpan(ctx, "QueueService.Complete")
	defer span.End()

	entry, err := s.repo.GetEntryByPatient(ctx, patientID)
	if err != nil {
		return err
	}
	if !entry.Status.IsActive() {
		return apperrors.NewNotFoundError("patient has no active queue entry")
	}
	if !entry.Status.CanTransitionTo(entities.QueueStatusCompleted) {
		return apperrors.NewInternalError("illegal transition to completed", nil)
	}

	priorStatus := entry.Status
	priorPosition := entry.Position
	now := time.Now()
	entry.Status = entities.QueueStatusCompleted
	entry.CompletedAt = &now

	if err := s.repo.UpdateStatus(ctx, entry); err != nil {
		return err
	}

	if s.metrics != nil {
		observability.RecordTransition(ctx, s.metrics, string(priorStatus), string(entities.QueueStatusCompleted))
	}

	s.publish(ctx, entities.QueueEventCompleted, entry.PatientID, entry.ID, priorPosition)

	if err := s.recalculate(ctx); err != nil {
		return err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("patient_id", patientID).
		Int("position", priorPosition).
		Msg("patient completed")

	return nil
}

// recalculate renumbers the active set and emits the follow-up side effects
// for every entry whose position changed
func (s *QueueService) recalculate(ctx context.Context) error {
	attempts := s.cfg.AllocateRetries
	if attempts < 1 {
		attempts = 1
	}

	var changed []*entities.QueueEntry
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		changed, err = s.repo.RenumberActive(ctx, s.cfg.WaitPerPositionMinutes)
		if err == nil {
			break
		}
		if !apperrors.IsStoreConflict(err) {
			return err
		}
	}
	if err != nil {
		return err
	}

	if len(changed) == 0 {
		return nil
	}

	s.publish(ctx, entities.QueueEventRecalculated, "", "", 0)

	for _, entry := range changed {
		if entry.Status != entities.QueueStatusWaiting || entry.Position > s.cfg.GetReadyThreshold {
			continue
		}
		entry := entry
		s.notify(ctx, func() error {
			name := s.patientName(ctx, entry.PatientID)
			return s.notifications.EnqueueGetReady(ctx, &NotificationContext{
				PatientID:   entry.PatientID,
				PatientName: name,
				Phone:       entry.Phone,
				Position:    entry.Position,
				WaitMinutes: entry.EstimatedWaitMinutes,
			})
		})
	}

	return nil
}

// GetPosition returns a patient's view of their place in the line
func (s *QueueService) GetPosition(ctx context.Context, patientID string) (*PositionInfo, error) {
	entry, err := s.repo.GetEntryByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	return &PositionInfo{
		Position:             entry.Position,
		Status:               entry.Status,
		EstimatedWaitMinutes: entry.EstimatedWaitMinutes,
		CheckedInAt:          entry.CheckedInAt,
		CalledAt:             entry.CalledAt,
		CompletedAt:          entry.CompletedAt,
	}, nil
}

// GetQueue returns the active entries ordered by position ascending
func (s *QueueService) GetQueue(ctx context.Context) ([]*entities.QueueEntry, error) {
	return s.repo.ListActive(ctx)
}

// Stats aggregates the line counts and visit-duration figures over the
// configured rolling window
func (s *QueueService) Stats(ctx context.Context) (*repositories.QueueStats, error) {
	return s.repo.Stats(ctx, s.cfg.StatsWindow)
}

// notify runs a notification enqueue and logs instead of propagating failure
func (s *QueueService) notify(ctx context.Context, fn func() error) {
	if s.notifications == nil {
		return
	}
	if err := fn(); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).Msg("failed to enqueue notification")
	}
}

// publish emits a queue event and logs instead of propagating failure
func (s *QueueService) publish(ctx context.Context, eventType entities.QueueEventType, patientID, entryID string, position int) {
	if s.eventBus == nil {
		return
	}

	event := &entities.QueueEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		PatientID: patientID,
		EntryID:   entryID,
		Position:  position,
		Timestamp: time.Now(),
	}

	if err := s.eventBus.Publish(ctx, providers.EventChannelQueueUpdates, event); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).
			Str("event_type", string(eventType)).
			Msg("failed to publish queue event")
	}
}

// patientName resolves a patient's display name for message rendering,
// falling back to empty on lookup failure
func (s *QueueService) patientName(ctx context.Context, patientID string) string {
	patient, err := s.repo.GetPatient(ctx, patientID)
	if err != nil {
		return ""
	}
	return patient.Name
}

// NormalizePhone strips separators and validates the result as a deliverable
// phone number
func NormalizePhone(phone string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		switch r {
		case ' ', '-', '(', ')', '.':
			continue
		default:
			b.WriteRune(r)
		}
	}
	normalized := b.String()
	if !normalizedPhonePattern.MatchString(normalized) {
		return "", apperrors.NewValidationError("phone number is malformed")
	}
	return normalized, nil
}
