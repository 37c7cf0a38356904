package core

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Purger removes entries idle for longer than retention.
type Purger interface {
	PurgeStale(ctx context.Context, retention time.Duration) int
}

// Janitor periodically purges stale sessions and behavior profiles.
type Janitor struct {
	purgers   map[string]Purger
	retention time.Duration
	logger    *zap.Logger
	cron      *cron.Cron
}

func NewJanitor(retention time.Duration, logger *zap.Logger, purgers map[string]Purger) *Janitor {
	return &Janitor{
		purgers:   purgers,
		retention: retention,
		logger:    logger,
		cron:      cron.New(),
	}
}

// Sweep runs every purger once and reports how many entries each removed.
func (j *Janitor) Sweep(ctx context.Context) map[string]int {
	removed := make(map[string]int, len(j.purgers))
	for name, p := range j.purgers {
		removed[name] = p.PurgeStale(ctx, j.retention)
	}
	j.logger.Debug("Sweep finished", zap.Any("removed", removed))
	return removed
}

// Start schedules Sweep. Stop must be called to release the scheduler.
func (j *Janitor) Start(schedule string) error {
	if _, err := j.cron.AddFunc(schedule, func() { j.Sweep(context.Background()) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	j.cron.Start()
	j.logger.Info("Sweep scheduled", zap.String("schedule", schedule), zap.Duration("retention", j.retention))
	return nil
}

// Stop waits for a running sweep to finish or ctx to expire.
func (j *Janitor) Stop(ctx context.Context) {
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
	}
}
