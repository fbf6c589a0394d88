package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// compactOnce drops expired snooze entries and runs sqlite planner maintenance.
func compactOnce(ctx context.Context, rt *nudgerRuntime) (int, error) {
	removed, err := rt.controller.Snoozes().PruneExpired(ctx, rt.controller.Now())
	if err != nil {
		return 0, fmt.Errorf("prune expired snoozes: %w", err)
	}
	if err := rt.repo.Optimize(ctx); err != nil {
		return removed, fmt.Errorf("optimize sqlite: %w", err)
	}
	rt.logger.Debug("snooze compaction complete", "removed", removed)
	return removed, nil
}

// runCompaction runs compactOnce on the configured cron schedule until ctx ends.
// An empty schedule disables compaction.
func runCompaction(ctx context.Context, rt *nudgerRuntime) error {
	spec := strings.TrimSpace(rt.cfg.Refresh.Compaction)
	if spec == "" {
		rt.logger.Debug("snooze compaction disabled")
		<-ctx.Done()
		return nil
	}
	loc, err := rt.cfg.Location()
	if err != nil {
		return err
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(spec, func() {
		if _, err := compactOnce(ctx, rt); err != nil && ctx.Err() == nil {
			rt.logger.Warn("snooze compaction failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule compaction %q: %w", spec, err)
	}
	c.Start()
	rt.logger.Info("snooze compaction scheduled", "schedule", spec)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
