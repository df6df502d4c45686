// Package dataset decides how much of the wildfire history to re-scrape
// based on the age of the cached snapshot, then persists and publishes it.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/calfire-history/internal/incident"
	"github.com/JakeFAU/calfire-history/internal/metrics"
)

// Store loads and saves snapshots.
type Store interface {
	Load(ctx context.Context) (incident.Snapshot, bool, error)
	Save(ctx context.Context, snap incident.Snapshot) (string, error)
}

// Fetcher produces normalized records from upstream.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]incident.Record, error)
	FetchActive(ctx context.Context) ([]incident.Record, error)
	FetchYear(ctx context.Context, year int) ([]incident.Record, error)
}

// Publication is what sinks receive after a snapshot is persisted.
type Publication struct {
	RunID    uuid.UUID
	Decision Decision
	Snapshot incident.Snapshot
	Path     string
}

// Sink receives every newly persisted snapshot.
type Sink interface {
	Publish(ctx context.Context, pub Publication) error
}

// Cache owns the refresh decision.
type Cache struct {
	store      Store
	fetcher    Fetcher
	sinks      []Sink
	thresholds Thresholds
	logger     *zap.Logger
}

// Option customizes a Cache.
type Option func(*Cache)

// WithSinks adds publishers run after each save.
func WithSinks(sinks ...Sink) Option {
	return func(c *Cache) {
		c.sinks = append(c.sinks, sinks...)
	}
}

// WithThresholds overrides DefaultThresholds.
func WithThresholds(th Thresholds) Option {
	return func(c *Cache) {
		c.thresholds = th
	}
}

// NewCache wires a Cache.
func NewCache(store Store, fetcher Fetcher, logger *zap.Logger, opts ...Option) (*Cache, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{store: store, fetcher: fetcher, thresholds: DefaultThresholds(), logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	if c.thresholds.ReuseDays <= 0 || c.thresholds.PatchDays <= c.thresholds.ReuseDays {
		return nil, fmt.Errorf("invalid thresholds: reuse=%d patch=%d", c.thresholds.ReuseDays, c.thresholds.PatchDays)
	}
	return c, nil
}

// GetDataset returns the dataset as of today, refreshing it as the prior
// snapshot's age requires.
func (c *Cache) GetDataset(ctx context.Context, today time.Time) (incident.Snapshot, error) {
	runID := uuid.New()
	logger := c.logger.With(zap.String("run_id", runID.String()))

	loaded, ok, err := c.store.Load(ctx)
	if err != nil {
		return incident.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	var prior *incident.Snapshot
	if ok {
		prior = &loaded
	}
	decision := c.thresholds.Decide(prior, today)
	metrics.ObserveDecision(string(decision))
	fields := []zap.Field{zap.String("decision", string(decision))}
	if prior != nil {
		fields = append(fields, zap.Int("age_days", AgeDays(prior.CapturedAt, today)), zap.Int("records", len(prior.Records)))
	}
	logger.Info("refresh decision", fields...)

	var records []incident.Record
	switch decision {
	case Reuse:
		metrics.SetSnapshotRecords(len(prior.Records))
		return *prior, nil
	case ColdStart:
		if records, err = c.fetcher.FetchAll(ctx); err != nil {
			return incident.Snapshot{}, fmt.Errorf("fetch full history: %w", err)
		}
	case PatchActive:
		active, err := c.fetcher.FetchActive(ctx)
		if err != nil {
			return incident.Snapshot{}, fmt.Errorf("fetch active incidents: %w", err)
		}
		records = patchActive(prior.Clone().Records, active)
	case RefetchYear:
		year := today.UTC().Year()
		fresh, err := c.fetcher.FetchYear(ctx, year)
		if err != nil {
			return incident.Snapshot{}, fmt.Errorf("fetch year %d: %w", year, err)
		}
		records = replaceYear(prior.Clone().Records, fresh, year)
	}

	snap := incident.Snapshot{Records: records, CapturedAt: utcDate(today)}
	path, err := c.store.Save(ctx, snap)
	if err != nil {
		return incident.Snapshot{}, fmt.Errorf("persist snapshot: %w", err)
	}
	metrics.SetSnapshotRecords(len(records))
	logger.Info("snapshot refreshed", zap.String("path", path), zap.Int("records", len(records)))

	c.publish(ctx, logger, Publication{RunID: runID, Decision: decision, Snapshot: snap, Path: path})
	return snap, nil
}

func (c *Cache) publish(ctx context.Context, logger *zap.Logger, pub Publication) {
	for _, sink := range c.sinks {
		if err := sink.Publish(ctx, pub); err != nil {
			logger.Warn("snapshot sink failed", zap.String("sink", fmt.Sprintf("%T", sink)), zap.Error(err))
		}
	}
}
