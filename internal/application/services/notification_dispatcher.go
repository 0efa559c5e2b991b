package services

import (
	"context"
	"time"

	"github.com/medwait/waitline/backend/internal/domain/entities"
	"github.com/medwait/waitline/backend/internal/domain/providers"
	"github.com/medwait/waitline/backend/internal/domain/repositories"
	"github.com/medwait/waitline/backend/internal/infrastructure/notifications"
	"github.com/medwait/waitline/backend/internal/infrastructure/observability"
	"github.com/medwait/waitline/backend/pkg/config"
	"github.com/medwait/waitline/backend/pkg/retry"
)

const dispatchBatchSize = 50

// NotificationDispatcher drains the pending notification outbox and sends
// each record through the SMS transport with jittered exponential backoff.
// It also polls the transport for the delivery outcome of sent records.
// Everything here is best-effort: a record that exhausts its retry budget is
// marked failed and left alone.
type NotificationDispatcher struct {
	repo     repositories.NotificationRepository
	sender   providers.MessageSender
	retryCfg retry.Config
	metrics  *observability.Metrics

	dispatchInterval   time.Duration
	statusPollInterval time.Duration
}

// NewNotificationDispatcher creates a new notification dispatcher
func NewNotificationDispatcher(
	repo repositories.NotificationRepository,
	sender providers.MessageSender,
	cfg *config.NotificationConfig,
	metrics *observability.Metrics,
) *NotificationDispatcher {
	return &NotificationDispatcher{
		repo:   repo,
		sender: sender,
		retryCfg: retry.Config{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  cfg.BaseDelay,
			MaxDelay:      cfg.MaxDelay,
			BackoffFactor: cfg.BackoffFactor,
			Jitter:        0.1,
			RetryIf:       notifications.IsRetryable,
		},
		metrics:            metrics,
		dispatchInterval:   cfg.DispatchInterval,
		statusPollInterval: cfg.StatusPollInterval,
	}
}

// Run drives the dispatch and status-poll loops until ctx is cancelled
func (d *NotificationDispatcher) Run(ctx context.Context) {
	dispatchTicker := time.NewTicker(d.dispatchInterval)
	defer dispatchTicker.Stop()
	pollTicker := time.NewTicker(d.statusPollInterval)
	defer pollTicker.Stop()

	logger := observability.GetLogger()
	logger.Info().
		Dur("dispatch_interval", d.dispatchInterval).
		Dur("status_poll_interval", d.statusPollInterval).
		Msg("notification dispatcher started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("notification dispatcher stopped")
			return
		case <-dispatchTicker.C:
			d.DispatchPending(ctx)
		case <-pollTicker.C:
			d.PollDeliveryStatus(ctx)
		}
	}
}

// DispatchPending sends every pending record once through the retry loop
func (d *NotificationDispatcher) DispatchPending(ctx context.Context) {
	logger := observability.LoggerFromContext(ctx)

	pending, err := d.repo.ListPending(ctx, dispatchBatchSize)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list pending notifications")
		return
	}

	for _, record := range pending {
		if ctx.Err() != nil {
			return
		}
		d.send(ctx, record)
	}
}

// send delivers one record, updating its status and retry count as it goes
func (d *NotificationDispatcher) send(ctx context.Context, record *entities.NotificationRecord) {
	logger := observability.LoggerFromContext(ctx)

	var messageID string
	err := retry.DoWithLog(ctx, d.retryCfg, "sms",
		func() error {
			id, sendErr := d.sender.Deliver(ctx, record.Phone, record.Message)
			if sendErr != nil {
				record.RetryCount++
				return sendErr
			}
			messageID = id
			return nil
		},
		func(attempt int, err error, nextDelay time.Duration) {
			logger.Warn().
				Err(err).
				Str("record_id", record.ID).
				Int("attempt", attempt).
				Dur("next_delay", nextDelay).
				Msg("notification send attempt failed")
		},
	)

	now := time.Now()
	record.UpdatedAt = now
	if err != nil {
		errMsg := err.Error()
		record.Status = entities.NotificationStatusFailed
		record.ErrorMessage = &errMsg
		record.FailedAt = &now
		logger.Error().
			Err(err).
			Str("record_id", record.ID).
			Str("kind", string(record.Kind)).
			Int("attempts", record.RetryCount).
			Msg("notification delivery failed")
	} else {
		record.Status = entities.NotificationStatusSent
		record.MessageID = &messageID
		record.SentAt = &now
	}

	if d.metrics != nil {
		observability.RecordNotification(ctx, d.metrics, string(record.Kind), string(record.Status))
	}

	if updateErr := d.repo.Update(ctx, record); updateErr != nil {
		logger.Error().Err(updateErr).Str("record_id", record.ID).Msg("failed to update notification record")
	}
}

// PollDeliveryStatus asks the transport what became of sent records and
// promotes them to delivered or failed
func (d *NotificationDispatcher) PollDeliveryStatus(ctx context.Context) {
	logger := observability.LoggerFromContext(ctx)

	sent, err := d.repo.ListSent(ctx, dispatchBatchSize)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list sent notifications")
		return
	}

	for _, record := range sent {
		if ctx.Err() != nil {
			return
		}
		if record.MessageID == nil {
			continue
		}

		status, err := d.sender.MessageStatus(ctx, *record.MessageID)
		if err != nil {
			logger.Warn().Err(err).Str("record_id", record.ID).Msg("failed to fetch delivery status")
			continue
		}

		now := time.Now()
		switch status {
		case "delivered":
			record.Status = entities.NotificationStatusDelivered
			record.DeliveredAt = &now
		case "failed":
			errMsg := "transport reported delivery failure"
			record.Status = entities.NotificationStatusFailed
			record.ErrorMessage = &errMsg
			record.FailedAt = &now
		default:
			// Still in flight at the transport
			continue
		}

		record.UpdatedAt = now
		if err := d.repo.Update(ctx, record); err != nil {
			logger.Error().Err(err).Str("record_id", record.ID).Msg("failed to update notification record")
		}
	}
}
