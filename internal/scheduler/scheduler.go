package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"supervisor-console/internal/logger"
)

const pruneTimeout = time.Minute

// Pruner deletes journal rows older than a cutoff.
type Pruner interface {
	PruneTransitions(ctx context.Context, before time.Time) (int64, error)
}

// PruneScheduler runs journal retention on a cron schedule.
type PruneScheduler struct {
	cronEngine *cron.Cron
	pruner     Pruner
	spec       string
	retention  time.Duration
	now        func() time.Time
}

// NewPruneScheduler creates a scheduler that keeps retentionDays of journal.
func NewPruneScheduler(pruner Pruner, spec string, retentionDays int) *PruneScheduler {
	return &PruneScheduler{
		cronEngine: cron.New(cron.WithLocation(time.Local)),
		pruner:     pruner,
		spec:       spec,
		retention:  time.Duration(retentionDays) * 24 * time.Hour,
		now:        time.Now,
	}
}

// Start registers the prune job and starts the cron engine.
func (s *PruneScheduler) Start() error {
	if _, err := s.cronEngine.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
		defer cancel()
		s.PruneOnce(ctx)
	}); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", s.spec, err)
	}

	s.cronEngine.Start()
	logger.Log.Infof("Journal prune scheduled (%s, keeping %s)", s.spec, s.retention)
	return nil
}

// PruneOnce deletes rows older than the retention window.
func (s *PruneScheduler) PruneOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.pruner.PruneTransitions(ctx, cutoff)
	if err != nil {
		logger.Log.WithError(err).Error("Journal prune failed")
		return 0, err
	}
	logger.Log.Infof("Pruned %d journal rows older than %s", n, cutoff.Format(time.RFC3339))
	return n, nil
}

// Stop stops the cron engine and waits for a running prune to finish.
func (s *PruneScheduler) Stop() {
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	logger.Log.Info("Journal prune scheduler stopped")
}
