package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/exportflowlabs/exportflow/internal/catalog"
	"github.com/exportflowlabs/exportflow/internal/config"
	exportdomain "github.com/exportflowlabs/exportflow/internal/export/domain"
	historydomain "github.com/exportflowlabs/exportflow/internal/history/domain"
	historyrepo "github.com/exportflowlabs/exportflow/internal/history/repository"
	historyservice "github.com/exportflowlabs/exportflow/internal/history/service"
	"github.com/exportflowlabs/exportflow/internal/metrics"
	"github.com/exportflowlabs/exportflow/internal/outbox"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now(ctx context.Context) time.Time { return c.now }

func newScheduler(t *testing.T, cfg config.SchedulerConfig, now time.Time) (*Scheduler, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&exportdomain.Export{},
		&historydomain.TransitionRecord{},
		&outbox.Event{},
		&outbox.ConsumerOffset{},
	))
	// AutoMigrate has no model for the archive table; mirror the live one.
	require.NoError(t, db.Exec(`CREATE TABLE export_status_history_archive AS SELECT * FROM export_status_history WHERE 0`).Error)

	repo := historyrepo.Provide()
	history := historyservice.New(historyservice.Params{
		DB:      db,
		Log:     zap.NewNop(),
		Repo:    repo,
		Metrics: metrics.Nop(),
	})

	s := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		Clock:   fixedClock{now: now},
		Config:  config.Config{Scheduler: cfg},
		History: history,
		Repo:    repo,
	})
	return s, db
}

func TestHistoryRetentionJob(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s, db := newScheduler(t, config.SchedulerConfig{HistoryRetention: 30 * 24 * time.Hour}, now)
	ctx := context.Background()

	old := historydomain.TransitionRecord{
		ID: 1, ExportID: 1,
		FromStatus: catalog.StatusDraft, ToStatus: catalog.StatusECXPending,
		Action: catalog.ActionSubmit, ActorID: 100, ActorRole: "exporter",
		Organization: catalog.OrgExporter,
		OccurredAt:   now.Add(-60 * 24 * time.Hour),
	}
	fresh := old
	fresh.ID, fresh.OccurredAt = 2, now.Add(-time.Hour)
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, db.Create(&fresh).Error)

	require.NoError(t, s.HistoryRetentionJob(ctx))

	var live, archived int64
	require.NoError(t, db.Model(&historydomain.TransitionRecord{}).Count(&live).Error)
	require.NoError(t, db.Table("export_status_history_archive").Count(&archived).Error)
	assert.Equal(t, int64(1), live)
	assert.Equal(t, int64(1), archived)
}

func TestOutboxCleanupJob(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s, db := newScheduler(t, config.SchedulerConfig{DispatchedEventRetention: 24 * time.Hour}, now)
	ctx := context.Background()

	oldEv, err := outbox.New(snowflake.ID(1), outbox.EventStatusChanged, map[string]any{}, now.Add(-48*time.Hour))
	require.NoError(t, err)
	require.NoError(t, outbox.Append(ctx, db, oldEv))
	newEv, err := outbox.New(snowflake.ID(1), outbox.EventStatusChanged, map[string]any{}, now)
	require.NoError(t, err)
	require.NoError(t, outbox.Append(ctx, db, newEv))

	// With no consumer offset nothing may be deleted.
	require.NoError(t, s.OutboxCleanupJob(ctx))
	var count int64
	require.NoError(t, db.Model(&outbox.Event{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	// Once the dispatcher has drained past both, the stale one goes.
	require.NoError(t, outbox.CommitOffset(ctx, db, "notification_dispatcher", newEv.ID, now))
	require.NoError(t, s.OutboxCleanupJob(ctx))
	require.NoError(t, db.Model(&outbox.Event{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestReconcileJobFlagsDrift(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s, db := newScheduler(t, config.SchedulerConfig{ReconcileBatch: 100}, now)
	ctx := context.Background()

	require.NoError(t, db.Create(&exportdomain.Export{
		ID: 1, Reference: "ref-1", ExporterID: 100,
		ExporterName: "Sidamo Highlands Trading", CoffeeType: "yirgacheffe",
		QuantityKg: 19200, DestinationCountry: "DE", EstimatedValueUSD: 96000,
		DocumentRefs: datatypes.JSON("[]"), Status: catalog.StatusShipped,
		CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Minute),
	}).Error)

	require.NoError(t, s.ReconcileJob(ctx))

	// Drift is published through the outbox.
	events, err := outbox.FetchAfter(ctx, db, "", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, outbox.EventReconcileDrift, events[0].EventType)
}
