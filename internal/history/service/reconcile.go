package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/exportflowlabs/exportflow/internal/catalog"
	exportdomain "github.com/exportflowlabs/exportflow/internal/export/domain"
	"github.com/exportflowlabs/exportflow/internal/history/domain"
	"github.com/exportflowlabs/exportflow/internal/outbox"
	"go.uber.org/zap"
)

func (s *service) Reconcile(ctx context.Context, exportID snowflake.ID) (*domain.Mismatch, error) {
	var e exportdomain.Export
	if err := s.db.WithContext(ctx).Where("id = ?", exportID).First(&e).Error; err != nil {
		return nil, err
	}
	return s.reconcileOne(ctx, &e)
}

func (s *service) ReconcileRecent(ctx context.Context, since time.Time, limit int) ([]domain.Mismatch, error) {
	var exports []exportdomain.Export
	err := s.db.WithContext(ctx).
		Where("updated_at >= ?", since).
		Order("updated_at ASC").
		Limit(limit).
		Find(&exports).Error
	if err != nil {
		return nil, err
	}

	var mismatches []domain.Mismatch
	for i := range exports {
		m, err := s.reconcileOne(ctx, &exports[i])
		if err != nil {
			return mismatches, err
		}
		if m != nil {
			mismatches = append(mismatches, *m)
		}
	}
	return mismatches, nil
}

// reconcileOne replays the ledger from the initial status. The ledger is
// append-only and written in the transition transaction, so any disagreement
// with the stored status means out-of-band mutation or data loss.
func (s *service) reconcileOne(ctx context.Context, e *exportdomain.Export) (*domain.Mismatch, error) {
	records, err := s.repo.ListByExport(ctx, s.db, e.ID)
	if err != nil {
		return nil, err
	}

	derived := catalog.Initial()
	detail := ""
	for _, rec := range records {
		if rec.FromStatus != derived {
			detail = fmt.Sprintf("ledger gap: record %s leaves %s but replay reached %s", rec.ID, rec.FromStatus, derived)
			break
		}
		to, ok := catalog.Edge(derived, rec.Action)
		if !ok || to != rec.ToStatus {
			detail = fmt.Sprintf("illegal edge: %s does not move %s to %s", rec.Action, rec.FromStatus, rec.ToStatus)
			break
		}
		derived = to
	}

	if detail == "" && derived == e.Status {
		return nil, nil
	}

	m := &domain.Mismatch{
		ExportID: e.ID,
		Stored:   e.Status,
		Derived:  derived,
		Detail:   detail,
	}

	s.metrics.ReconcileMismatches.Inc()
	s.log.Warn("ledger replay disagrees with stored status",
		zap.String("export_id", e.ID.String()),
		zap.String("stored", string(m.Stored)),
		zap.String("derived", string(m.Derived)),
		zap.String("detail", m.Detail))

	ev, err := outbox.New(e.ID, outbox.EventReconcileDrift, m, time.Now().UTC())
	if err != nil {
		return m, err
	}
	if err := outbox.Append(ctx, s.db, ev); err != nil {
		return m, err
	}
	return m, nil
}
