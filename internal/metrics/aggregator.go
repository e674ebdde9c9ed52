package metrics

import (
	"context"
	"log/slog"
	"time"
)

const statsWindow = 24 * time.Hour

// JobStats is the view of the swap job table the aggregator needs
type JobStats interface {
	CountByStatus(ctx context.Context, since time.Time) (map[string]int64, error)
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// Aggregator periodically refreshes job gauges from the database and
// enforces the job retention window
type Aggregator struct {
	stats     JobStats
	metrics   *Metrics
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
	done      chan struct{}
}

// NewAggregator creates a new metrics aggregator worker
func NewAggregator(stats JobStats, m *Metrics, logger *slog.Logger, interval, retention time.Duration) *Aggregator {
	if interval == 0 {
		interval = 1 * time.Minute
	}

	return &Aggregator{
		stats:     stats,
		metrics:   m,
		logger:    logger,
		interval:  interval,
		retention: retention,
		done:      make(chan struct{}),
	}
}

// Start runs the worker until ctx is cancelled or Stop is called
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info("metrics aggregator started", "interval", a.interval, "retention", a.retention)
	a.aggregate(ctx)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("metrics aggregator stopped")
			return
		case <-a.done:
			a.logger.Info("metrics aggregator stopped")
			return
		case <-ticker.C:
			a.aggregate(ctx)
		}
	}
}

// Stop gracefully shuts down the aggregator
func (a *Aggregator) Stop() {
	close(a.done)
}

func (a *Aggregator) aggregate(ctx context.Context) {
	a.logger.Debug("running metrics aggregation")

	if a.retention > 0 {
		deleted, err := a.stats.DeleteOlderThan(ctx, a.retention)
		if err != nil {
			a.logger.Error("failed to delete old swap jobs", "error", err)
		} else if deleted > 0 {
			a.logger.Info("deleted old swap jobs", "count", deleted)
		}
	}

	counts, err := a.stats.CountByStatus(ctx, time.Now().Add(-statsWindow))
	if err != nil {
		a.logger.Error("failed to count swap jobs", "error", err)
		return
	}
	a.metrics.SetJobsWindow(counts)
}
