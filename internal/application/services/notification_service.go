package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medwait/waitline/backend/internal/domain/entities"
	"github.com/medwait/waitline/backend/internal/domain/repositories"
	"github.com/medwait/waitline/backend/internal/infrastructure/observability"
	"github.com/medwait/waitline/backend/pkg/config"
)

// messageTemplates holds the fixed message per transition kind
var messageTemplates = map[entities.NotificationKind]string{
	entities.NotificationCheckIn:  "Hi {{name}}, you're checked in. You are number {{position}} in line; estimated wait {{wait}} minutes.",
	entities.NotificationGetReady: "{{name}}, you're almost up - you are now number {{position}} in line. Please make your way to the front desk.",
	entities.NotificationCalled:   "{{name}}, it's your turn now. Please proceed to reception.",
}

// NotificationService turns queue transitions into durable pending
// notification records. Sending happens out of band in the dispatcher, so
// enqueueing never blocks or fails a queue mutation.
type NotificationService struct {
	repo        repositories.NotificationRepository
	dedupWindow time.Duration
	metrics     *observability.Metrics
}

// NewNotificationService creates a new notification service
func NewNotificationService(repo repositories.NotificationRepository, cfg *config.NotificationConfig, metrics *observability.Metrics) *NotificationService {
	return &NotificationService{
		repo:        repo,
		dedupWindow: cfg.DedupWindow,
		metrics:     metrics,
	}
}

// NotificationContext carries the values rendered into a message template
type NotificationContext struct {
	PatientID   string
	PatientName string
	Phone       string
	Position    int
	WaitMinutes int
}

// EnqueueCheckIn records a pending check-in confirmation
func (n *NotificationService) EnqueueCheckIn(ctx context.Context, notifCtx *NotificationContext) error {
	return n.enqueue(ctx, entities.NotificationCheckIn, notifCtx)
}

// EnqueueCalled records a pending called-now message
func (n *NotificationService) EnqueueCalled(ctx context.Context, notifCtx *NotificationContext) error {
	return n.enqueue(ctx, entities.NotificationCalled, notifCtx)
}

// EnqueueGetReady records a pending get-ready alert unless one was already
// recorded for this patient within the dedup window. Rapid successive
// recalculations would otherwise stack duplicate alerts.
func (n *NotificationService) EnqueueGetReady(ctx context.Context, notifCtx *NotificationContext) error {
	recent, err := n.repo.HasRecent(ctx, notifCtx.PatientID, entities.NotificationGetReady, n.dedupWindow)
	if err != nil {
		return err
	}
	if recent {
		logger := observability.LoggerFromContext(ctx)
		logger.Debug().
			Str("patient_id", notifCtx.PatientID).
			Msg("skipping duplicate get-ready notification")
		return nil
	}
	return n.enqueue(ctx, entities.NotificationGetReady, notifCtx)
}

func (n *NotificationService) enqueue(ctx context.Context, kind entities.NotificationKind, notifCtx *NotificationContext) error {
	now := time.Now()
	record := &entities.NotificationRecord{
		ID:        uuid.New().String(),
		PatientID: notifCtx.PatientID,
		Kind:      kind,
		Phone:     notifCtx.Phone,
		Message:   renderTemplate(messageTemplates[kind], notifCtx),
		Status:    entities.NotificationStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := n.repo.Create(ctx, record); err != nil {
		return err
	}

	if n.metrics != nil {
		observability.RecordNotification(ctx, n.metrics, string(kind), "enqueued")
	}
	return nil
}

// renderTemplate replaces placeholders in a message template
func renderTemplate(template string, ctx *NotificationContext) string {
	replacements := map[string]string{
		"{{name}}":     ctx.PatientName,
		"{{position}}": strconv.Itoa(ctx.Position),
		"{{wait}}":     strconv.Itoa(ctx.WaitMinutes),
	}

	result := template
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result
}
