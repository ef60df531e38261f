package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"docflow/internal/config"
	"docflow/internal/logging"
	"docflow/internal/queue"
)

// maintenance purges terminal tasks and old checkpoint reports past
// the retention window on a cron schedule.
type maintenance struct {
	cron      *cron.Cron
	store     *queue.Store
	reportDir string
	retention time.Duration
	logger    *slog.Logger
}

func newMaintenance(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*maintenance, error) {
	retention := time.Duration(cfg.Maintenance.RetentionDays) * 24 * time.Hour
	m := &maintenance{
		cron:      cron.New(),
		store:     store,
		reportDir: cfg.Paths.ReportDir,
		retention: retention,
		logger:    logging.NewComponentLogger(logger, "maintenance"),
	}

	if _, err := m.cron.AddFunc(cfg.Maintenance.Schedule, m.run); err != nil {
		return nil, fmt.Errorf("maintenance schedule %q: %w", cfg.Maintenance.Schedule, err)
	}
	return m, nil
}

func (m *maintenance) start() {
	m.cron.Start()
	m.logger.Info("maintenance schedule active", logging.Duration("retention", m.retention))
}

func (m *maintenance) stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

func (m *maintenance) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-m.retention)
	purged, err := m.store.PurgeTerminalBefore(ctx, cutoff)
	if err != nil {
		m.logger.Error("maintenance purge failed", logging.Error(err))
		return
	}
	if purged > 0 {
		m.logger.Info("maintenance purge completed", logging.Int64("purged", purged))
	}

	m.pruneReports(cutoff)
}

// pruneReports removes checkpoint reports older than the cutoff.
// Reports of purged tasks have nothing referencing them anymore.
func (m *maintenance) pruneReports(cutoff time.Time) {
	entries, err := os.ReadDir(m.reportDir)
	if err != nil {
		m.logger.Warn("report directory scan failed", logging.Error(err))
		return
	}

	var pruned int
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "report_") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(m.reportDir, entry.Name())); err != nil {
			m.logger.Warn("report prune failed",
				logging.String("file", entry.Name()),
				logging.Error(err),
			)
			continue
		}
		pruned++
	}
	if pruned > 0 {
		m.logger.Info("old reports pruned", logging.Int("pruned", pruned))
	}
}
