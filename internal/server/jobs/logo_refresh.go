// Package jobs holds background tasks owned by the application lifecycle.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/services"
)

const (
	DefaultLogoRefreshInterval = 24 * time.Hour
	DefaultInitialDelay        = 5 * time.Second
)

// LogoRefresher is implemented by *services.MaintenanceService.
type LogoRefresher interface {
	RefreshLogos(ctx context.Context) (services.RefreshReport, error)
}

// LogoRefreshJob re-resolves all logos shortly after start and then on
// every interval.
type LogoRefreshJob struct {
	refresher    LogoRefresher
	logger       logging.Logger
	interval     time.Duration
	initialDelay time.Duration
	stopCh       chan struct{}
	stopOnce     sync.Once
}

func NewLogoRefreshJob(r LogoRefresher, l logging.Logger, interval time.Duration) *LogoRefreshJob {
	if interval <= 0 {
		interval = DefaultLogoRefreshInterval
	}
	return &LogoRefreshJob{
		refresher:    r,
		logger:       l.With("module", "logo_refresh_job"),
		interval:     interval,
		initialDelay: DefaultInitialDelay,
		stopCh:       make(chan struct{}),
	}
}

// Start blocks until ctx is done or Stop is called.
func (j *LogoRefreshJob) Start(ctx context.Context) {
	j.logger.Info(ctx, "logo refresh job started", "interval", j.interval)

	first := time.NewTimer(j.initialDelay)
	defer first.Stop()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info(ctx, "logo refresh job exiting")
			return
		case <-j.stopCh:
			j.logger.Info(ctx, "logo refresh job stopped")
			return
		case <-first.C:
			j.run(ctx)
		case <-ticker.C:
			j.run(ctx)
		}
	}
}

func (j *LogoRefreshJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

func (j *LogoRefreshJob) run(ctx context.Context) {
	rep, err := j.refresher.RefreshLogos(ctx)
	if err != nil {
		if ctx.Err() == nil {
			j.logger.Error(ctx, "logo refresh failed", "error", err)
		}
		return
	}
	j.logger.Debug(ctx, "logo refresh done", "updated", rep.Updated, "failed", rep.Failed)
}
