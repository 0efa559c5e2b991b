package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/medwait/waitline/backend/internal/domain/entities"
	"github.com/medwait/waitline/backend/internal/domain/providers"
	"github.com/medwait/waitline/backend/internal/domain/repositories"
	"github.com/medwait/waitline/backend/internal/infrastructure/observability"
)

// statsTTL is short: the figures feed a dashboard, not the line itself
const statsTTL = 30

// CachedQueueAdapter wraps a QueueRepository with a cache for the stats
// aggregates. Reads that decide queue behavior (positions, ordering, phone
// uniqueness) always go to the store; only Stats is served from cache, and
// any write that can move the counts drops the cached figures.
type CachedQueueAdapter struct {
	adapter repositories.QueueRepository
	cache   providers.CacheProvider

	// keys remembers every stats cache key written, so invalidation does not
	// need to know which windows callers ask for
	keys sync.Map
}

// NewCachedQueueAdapter creates a new cached queue adapter
func NewCachedQueueAdapter(adapter repositories.QueueRepository, cache providers.CacheProvider) repositories.QueueRepository {
	return &CachedQueueAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

func statsCacheKey(window time.Duration) string {
	return fmt.Sprintf("queue:stats:%s", window)
}

// CreateWithPatient inserts through to the store and drops the cached stats
func (a *CachedQueueAdapter) CreateWithPatient(ctx context.Context, patient *entities.Patient, entry *entities.QueueEntry) error {
	if err := a.adapter.CreateWithPatient(ctx, patient, entry); err != nil {
		return err
	}
	a.invalidateStats(ctx)
	return nil
}

// GetEntry retrieves a queue entry by ID
func (a *CachedQueueAdapter) GetEntry(ctx context.Context, id string) (*entities.QueueEntry, error) {
	return a.adapter.GetEntry(ctx, id)
}

// GetEntryByPatient retrieves the most recent queue entry for a patient
func (a *CachedQueueAdapter) GetEntryByPatient(ctx context.Context, patientID string) (*entities.QueueEntry, error) {
	return a.adapter.GetEntryByPatient(ctx, patientID)
}

// GetPatient retrieves a patient by ID
func (a *CachedQueueAdapter) GetPatient(ctx context.Context, id string) (*entities.Patient, error) {
	return a.adapter.GetPatient(ctx, id)
}

// ActiveEntryByPhone retrieves the active entry holding the given phone
func (a *CachedQueueAdapter) ActiveEntryByPhone(ctx context.Context, phone string) (*entities.QueueEntry, error) {
	return a.adapter.ActiveEntryByPhone(ctx, phone)
}

// MaxActivePosition returns the highest active position
func (a *CachedQueueAdapter) MaxActivePosition(ctx context.Context) (int, error) {
	return a.adapter.MaxActivePosition(ctx)
}

// ListActive returns all active entries ordered by position ascending
func (a *CachedQueueAdapter) ListActive(ctx context.Context) ([]*entities.QueueEntry, error) {
	return a.adapter.ListActive(ctx)
}

// FirstWaiting returns the waiting entry with the smallest position
func (a *CachedQueueAdapter) FirstWaiting(ctx context.Context) (*entities.QueueEntry, error) {
	return a.adapter.FirstWaiting(ctx)
}

// UpdateStatus writes through to the store and drops the cached stats
func (a *CachedQueueAdapter) UpdateStatus(ctx context.Context, entry *entities.QueueEntry) error {
	if err := a.adapter.UpdateStatus(ctx, entry); err != nil {
		return err
	}
	a.invalidateStats(ctx)
	return nil
}

// RenumberActive only moves positions; the stats counts are untouched
func (a *CachedQueueAdapter) RenumberActive(ctx context.Context, waitPerPosition int) ([]*entities.QueueEntry, error) {
	return a.adapter.RenumberActive(ctx, waitPerPosition)
}

// Stats serves the aggregates from cache when fresh
func (a *CachedQueueAdapter) Stats(ctx context.Context, window time.Duration) (*repositories.QueueStats, error) {
	cacheKey := statsCacheKey(window)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var stats repositories.QueueStats
		if err := json.Unmarshal(cached, &stats); err == nil {
			return &stats, nil
		}
		observability.GetLogger().Warn().Err(err).Msg("failed to unmarshal cached queue stats")
	}

	stats, err := a.adapter.Stats(ctx, window)
	if err != nil {
		return nil, err
	}

	// Update cache asynchronously to avoid blocking the response
	a.keys.Store(cacheKey, struct{}{})
	go func() {
		bgCtx := context.Background()
		if data, err := json.Marshal(stats); err == nil {
			if err := a.cache.Set(bgCtx, cacheKey, data, statsTTL); err != nil {
				observability.GetLogger().Warn().Err(err).Msg("failed to cache queue stats")
			}
		}
	}()

	return stats, nil
}

func (a *CachedQueueAdapter) invalidateStats(ctx context.Context) {
	a.keys.Range(func(key, _ interface{}) bool {
		if err := a.cache.Delete(ctx, key.(string)); err != nil {
			observability.GetLogger().Debug().Err(err).Msg("failed to invalidate cached queue stats")
		}
		return true
	})
}
