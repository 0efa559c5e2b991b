package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medwait/waitline/backend/internal/domain/entities"
	"github.com/medwait/waitline/backend/pkg/config"
)

// fakeNotificationRepo is an in-memory NotificationRepository.
type fakeNotificationRepo struct {
	mu      sync.Mutex
	records []*entities.NotificationRecord

	createErr error
	updateErr error
}

func (f *fakeNotificationRepo) Create(ctx context.Context, record *entities.NotificationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return f.createErr
	}
	clone := *record
	f.records = append(f.records, &clone)
	return nil
}

func (f *fakeNotificationRepo) Update(ctx context.Context, record *entities.NotificationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return f.updateErr
	}
	for i, existing := range f.records {
		if existing.ID == record.ID {
			clone := *record
			f.records[i] = &clone
			return nil
		}
	}
	return nil
}

func (f *fakeNotificationRepo) listByStatus(status entities.NotificationStatus, limit int) []*entities.NotificationRecord {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*entities.NotificationRecord
	for _, record := range f.records {
		if record.Status != status {
			continue
		}
		clone := *record
		out = append(out, &clone)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (f *fakeNotificationRepo) ListPending(ctx context.Context, limit int) ([]*entities.NotificationRecord, error) {
	return f.listByStatus(entities.NotificationStatusPending, limit), nil
}

func (f *fakeNotificationRepo) ListSent(ctx context.Context, limit int) ([]*entities.NotificationRecord, error) {
	return f.listByStatus(entities.NotificationStatusSent, limit), nil
}

func (f *fakeNotificationRepo) HasRecent(ctx context.Context, patientID string, kind entities.NotificationKind, window time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := time.Now().Add(-window)
	for _, record := range f.records {
		if record.PatientID == patientID && record.Kind == kind && record.CreatedAt.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNotificationRepo) byID(id string) *entities.NotificationRecord {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, record := range f.records {
		if record.ID == id {
			clone := *record
			return &clone
		}
	}
	return nil
}

func testNotificationConfig() *config.NotificationConfig {
	return &config.NotificationConfig{
		MaxAttempts:        3,
		BaseDelay:          time.Millisecond,
		MaxDelay:           5 * time.Millisecond,
		BackoffFactor:      2.0,
		DedupWindow:        5 * time.Minute,
		DispatchInterval:   10 * time.Millisecond,
		StatusPollInterval: 10 * time.Millisecond,
	}
}

func TestNotificationService_EnqueueCheckIn(t *testing.T) {
	repo := &fakeNotificationRepo{}
	svc := NewNotificationService(repo, testNotificationConfig(), nil)

	err := svc.EnqueueCheckIn(context.Background(), &NotificationContext{
		PatientID:   "p1",
		PatientName: "Amara",
		Phone:       "+2348010000001",
		Position:    3,
		WaitMinutes: 30,
	})
	require.NoError(t, err)

	require.Len(t, repo.records, 1)
	record := repo.records[0]
	assert.Equal(t, entities.NotificationCheckIn, record.Kind)
	assert.Equal(t, entities.NotificationStatusPending, record.Status)
	assert.Equal(t, "+2348010000001", record.Phone)
	assert.Contains(t, record.Message, "Amara")
	assert.Contains(t, record.Message, "number 3 in line")
	assert.Contains(t, record.Message, "30 minutes")
}

func TestNotificationService_EnqueueGetReady_Dedup(t *testing.T) {
	repo := &fakeNotificationRepo{}
	svc := NewNotificationService(repo, testNotificationConfig(), nil)

	notifCtx := &NotificationContext{
		PatientID:   "p1",
		PatientName: "Amara",
		Phone:       "+2348010000001",
		Position:    2,
		WaitMinutes: 15,
	}

	require.NoError(t, svc.EnqueueGetReady(context.Background(), notifCtx))
	require.NoError(t, svc.EnqueueGetReady(context.Background(), notifCtx))

	assert.Len(t, repo.records, 1, "a second get-ready within the window must be suppressed")

	// A different patient is not affected by the dedup.
	other := &NotificationContext{PatientID: "p2", PatientName: "Bode", Phone: "+2348010000002", Position: 1}
	require.NoError(t, svc.EnqueueGetReady(context.Background(), other))
	assert.Len(t, repo.records, 2)
}

func TestNotificationService_DedupIgnoresOtherKinds(t *testing.T) {
	repo := &fakeNotificationRepo{}
	svc := NewNotificationService(repo, testNotificationConfig(), nil)

	notifCtx := &NotificationContext{
		PatientID:   "p1",
		PatientName: "Amara",
		Phone:       "+2348010000001",
		Position:    2,
	}

	require.NoError(t, svc.EnqueueCheckIn(context.Background(), notifCtx))
	require.NoError(t, svc.EnqueueGetReady(context.Background(), notifCtx))
	require.NoError(t, svc.EnqueueCalled(context.Background(), notifCtx))

	assert.Len(t, repo.records, 3)
}

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		ctx      *NotificationContext
		want     string
	}{
		{
			name:     "all placeholders",
			template: "Hi {{name}}, you are number {{position}}; wait {{wait}} minutes.",
			ctx:      &NotificationContext{PatientName: "Amara", Position: 4, WaitMinutes: 45},
			want:     "Hi Amara, you are number 4; wait 45 minutes.",
		},
		{
			name:     "no placeholders",
			template: "It's your turn.",
			ctx:      &NotificationContext{PatientName: "Amara"},
			want:     "It's your turn.",
		},
		{
			name:     "empty name renders empty",
			template: "{{name}}, proceed to reception.",
			ctx:      &NotificationContext{},
			want:     ", proceed to reception.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderTemplate(tt.template, tt.ctx))
		})
	}
}
