package scheduler

import (
	"context"

	"github.com/exportflowlabs/exportflow/internal/outbox"
	"go.uber.org/zap"
)

// HistoryRetentionJob moves ledger records older than the retention window
// into the archive table. The ledger itself stays append-only; archival is
// the only sanctioned removal.
func (s *Scheduler) HistoryRetentionJob(ctx context.Context) error {
	retention := s.cfg.HistoryRetention
	if retention <= 0 {
		return nil
	}

	cutoff := s.clock.Now(ctx).Add(-retention)
	moved, err := s.repo.ArchiveOlderThan(ctx, s.db, cutoff)
	if err != nil {
		return err
	}
	if moved > 0 {
		s.log.Info("archived history records",
			zap.Int64("moved", moved),
			zap.Time("cutoff", cutoff))
	}
	return nil
}

// OutboxCleanupJob deletes dispatched events past the retention window.
// Events no consumer has drained yet are never touched.
func (s *Scheduler) OutboxCleanupJob(ctx context.Context) error {
	retention := s.cfg.DispatchedEventRetention
	if retention <= 0 {
		return nil
	}

	var minOffset string
	err := s.db.WithContext(ctx).
		Raw(`SELECT COALESCE(MIN(last_event_id), '') FROM event_consumer_offsets`).
		Scan(&minOffset).Error
	if err != nil {
		return err
	}
	if minOffset == "" {
		// No consumer has run yet; deleting would lose events.
		return nil
	}

	cutoff := s.clock.Now(ctx).Add(-retention)
	deleted, err := outbox.DeleteDispatchedBefore(ctx, s.db, cutoff, minOffset)
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.log.Info("pruned dispatched events",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
	return nil
}
