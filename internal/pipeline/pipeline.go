// Package pipeline fetches, normalizes and reconciles both sources. It is
// the dataset cache's view of upstream.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/calfire-history/internal/incident"
	"github.com/JakeFAU/calfire-history/internal/reconcile"
)

// GovernmentSource is satisfied by *govfeed.Source.
type GovernmentSource interface {
	FetchYear(ctx context.Context, year int) (incident.Batch, error)
	FetchActive(ctx context.Context) (incident.Batch, error)
}

// CommunitySource is satisfied by *community.Extractor.
type CommunitySource interface {
	ExtractYear(ctx context.Context, year int) (incident.Batch, error)
}

// Normalizer is satisfied by *normalize.Normalizer.
type Normalizer interface {
	Normalize(batches []incident.Batch) ([]incident.Record, error)
}

// Config sets the year ranges and fan-out.
type Config struct {
	CommunityFirstYear  int
	GovernmentFirstYear int
	// Concurrency bounds simultaneous year fetches. Values below 2 run sequentially.
	Concurrency int
}

// Pipeline implements dataset.Fetcher.
type Pipeline struct {
	government GovernmentSource
	community  CommunitySource
	normalizer Normalizer
	reconciler reconcile.Reconciler
	clock      incident.Clock
	cfg        Config
	logger     *zap.Logger
}

// New wires a Pipeline.
func New(gov GovernmentSource, comm CommunitySource, norm Normalizer, clock incident.Clock, cfg Config, logger *zap.Logger) (*Pipeline, error) {
	if gov == nil || comm == nil || norm == nil {
		return nil, fmt.Errorf("government, community and normalizer are required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if cfg.CommunityFirstYear <= 0 || cfg.GovernmentFirstYear <= cfg.CommunityFirstYear {
		return nil, fmt.Errorf("invalid year range: community=%d government=%d", cfg.CommunityFirstYear, cfg.GovernmentFirstYear)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		government: gov,
		community:  comm,
		normalizer: norm,
		reconciler: reconcile.New(cfg.GovernmentFirstYear),
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// FetchAll fetches the full history: community years before the cutover,
// government years from the cutover through the current year.
func (p *Pipeline) FetchAll(ctx context.Context) ([]incident.Record, error) {
	current := p.clock.Now().Year()
	communityBatches, err := p.fetchYears(ctx, p.cfg.CommunityFirstYear, p.cfg.GovernmentFirstYear-1, p.community.ExtractYear)
	if err != nil {
		return nil, err
	}
	governmentBatches, err := p.fetchYears(ctx, p.cfg.GovernmentFirstYear, current, p.government.FetchYear)
	if err != nil {
		return nil, err
	}
	community := p.normalize(communityBatches)
	government := p.normalize(governmentBatches)
	out := p.reconciler.Reconcile(government, community)
	p.logger.Info("full history fetched",
		zap.Int("community_records", len(community)),
		zap.Int("government_records", len(government)),
		zap.Int("records", len(out)),
	)
	return out, nil
}

// FetchActive fetches the current incident list.
func (p *Pipeline) FetchActive(ctx context.Context) ([]incident.Record, error) {
	batch, err := p.government.FetchActive(ctx)
	if err != nil {
		return nil, err
	}
	return p.normalize([]incident.Batch{batch}), nil
}

// FetchYear fetches one year from whichever source is authoritative for it.
func (p *Pipeline) FetchYear(ctx context.Context, year int) ([]incident.Record, error) {
	if year >= p.cfg.GovernmentFirstYear {
		batch, err := p.government.FetchYear(ctx, year)
		if err != nil {
			return nil, err
		}
		return p.reconciler.Reconcile(p.normalize([]incident.Batch{batch}), nil), nil
	}
	batch, err := p.community.ExtractYear(ctx, year)
	if err != nil {
		return nil, err
	}
	return p.reconciler.Reconcile(nil, p.normalize([]incident.Batch{batch})), nil
}

// normalize logs dropped rows; they never fail the fetch.
func (p *Pipeline) normalize(batches []incident.Batch) []incident.Record {
	records, err := p.normalizer.Normalize(batches)
	if err != nil {
		p.logger.Warn("rows dropped during normalization", zap.Error(err))
	}
	return records
}

type yearFetch func(ctx context.Context, year int) (incident.Batch, error)

// fetchYears runs fetch for every year in [from, to] and returns batches in year order.
func (p *Pipeline) fetchYears(ctx context.Context, from, to int, fetch yearFetch) ([]incident.Batch, error) {
	if to < from {
		return nil, nil
	}
	batches := make([]incident.Batch, to-from+1)
	if p.cfg.Concurrency < 2 {
		for year := from; year <= to; year++ {
			batch, err := fetch(ctx, year)
			if err != nil {
				return nil, err
			}
			batches[year-from] = batch
			p.logger.Info("year fetched", zap.Int("year", year), zap.Int("rows", len(batch.Rows)))
		}
		return batches, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for year := from; year <= to; year++ {
		g.Go(func() error {
			batch, err := fetch(gctx, year)
			if err != nil {
				return err
			}
			batches[year-from] = batch
			p.logger.Info("year fetched", zap.Int("year", year), zap.Int("rows", len(batch.Rows)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batches, nil
}
