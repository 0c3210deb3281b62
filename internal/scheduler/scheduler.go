// Package scheduler runs the periodic maintenance jobs: ledger
// reconciliation, history archival and outbox cleanup. One process should
// run it; jobs are written to tolerate overlap anyway.
package scheduler

import (
	"context"
	"time"

	"github.com/exportflowlabs/exportflow/internal/clock"
	"github.com/exportflowlabs/exportflow/internal/config"
	historydomain "github.com/exportflowlabs/exportflow/internal/history/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Scheduler struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	cfg     config.SchedulerConfig
	history historydomain.Service
	repo    historydomain.Repository

	lastReconcile time.Time
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Config  config.Config
	History historydomain.Service
	Repo    historydomain.Repository
}

func New(p Params) *Scheduler {
	return &Scheduler{
		db:      p.DB,
		log:     p.Log.Named("scheduler"),
		clock:   p.Clock,
		cfg:     p.Config.Scheduler,
		history: p.History,
		repo:    p.Repo,
	}
}

// RunForever ticks every configured interval until the context is cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if err := s.ReconcileJob(ctx); err != nil {
		s.log.Error("reconcile job failed", zap.Error(err))
	}
	if err := s.HistoryRetentionJob(ctx); err != nil {
		s.log.Error("history retention job failed", zap.Error(err))
	}
	if err := s.OutboxCleanupJob(ctx); err != nil {
		s.log.Error("outbox cleanup job failed", zap.Error(err))
	}
}

// ReconcileJob replays ledgers for exports touched since the previous run.
// The first run after boot looks back a full day.
func (s *Scheduler) ReconcileJob(ctx context.Context) error {
	now := s.clock.Now(ctx)
	since := s.lastReconcile
	if since.IsZero() {
		since = now.Add(-24 * time.Hour)
	}

	batch := s.cfg.ReconcileBatch
	if batch <= 0 {
		batch = 200
	}

	mismatches, err := s.history.ReconcileRecent(ctx, since, batch)
	if err != nil {
		return err
	}
	s.lastReconcile = now

	if len(mismatches) > 0 {
		s.log.Warn("reconcile found drifted exports", zap.Int("count", len(mismatches)))
	}
	return nil
}
