package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/exportflowlabs/exportflow/internal/metrics"
	"github.com/exportflowlabs/exportflow/internal/notify/domain"
	"github.com/exportflowlabs/exportflow/internal/notify/service"
	"github.com/exportflowlabs/exportflow/internal/outbox"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingProvider struct {
	name string
	sent []domain.Notification
	fail bool
}

func (p *recordingProvider) Name() string { return p.name }

func (p *recordingProvider) Send(ctx context.Context, n domain.Notification) error {
	p.sent = append(p.sent, n)
	if p.fail {
		return assert.AnError
	}
	return nil
}

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&outbox.Event{}, &outbox.ConsumerOffset{}))
	return db
}

func appendEvent(t *testing.T, db *gorm.DB, exportID int64, eventType string) string {
	t.Helper()
	ev, err := outbox.New(snowflake.ID(exportID), eventType, map[string]any{
		"reference": "sidamo-1",
	}, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, outbox.Append(context.Background(), db, ev))
	return ev.ID
}

func TestProcessEventsFansOutAndAdvancesOffset(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	id1 := appendEvent(t, db, 1, outbox.EventExportCreated)
	id2 := appendEvent(t, db, 1, outbox.EventStatusChanged)

	p := &recordingProvider{name: "webhook"}
	d := service.NewDispatcher(db, zap.NewNop(), nil, []domain.Provider{p}, metrics.Nop(), service.DispatcherConfig{})

	n, err := d.ProcessEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, p.sent, 2)
	assert.Equal(t, id1, p.sent[0].EventID)
	assert.Equal(t, outbox.EventStatusChanged, p.sent[1].EventType)
	assert.Equal(t, "sidamo-1", p.sent[1].Data["reference"])

	offset, err := outbox.Offset(ctx, db, service.ConsumerID)
	require.NoError(t, err)
	assert.Equal(t, id2, offset)

	// Nothing new: a second drain is a no-op.
	n, err = d.ProcessEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, p.sent, 2)
}

func TestRedeliverySuppressedByDedup(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	appendEvent(t, db, 1, outbox.EventStatusChanged)

	p := &recordingProvider{name: "webhook"}
	d := service.NewDispatcher(db, zap.NewNop(), rdb, []domain.Provider{p}, metrics.Nop(), service.DispatcherConfig{
		DedupTTL: time.Hour,
	})

	_, err := d.ProcessEvents(ctx)
	require.NoError(t, err)
	require.Len(t, p.sent, 1)

	// Simulate a crash after dispatch but before the offset commit.
	require.NoError(t, db.Exec(`DELETE FROM event_consumer_offsets`).Error)

	_, err = d.ProcessEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, p.sent, 1)
}

func TestProviderFailureDoesNotBlockOthers(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	appendEvent(t, db, 1, outbox.EventStatusChanged)

	failing := &recordingProvider{name: "webhook", fail: true}
	healthy := &recordingProvider{name: "email"}
	d := service.NewDispatcher(db, zap.NewNop(), nil, []domain.Provider{failing, healthy}, metrics.Nop(), service.DispatcherConfig{})

	n, err := d.ProcessEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, failing.sent, 1)
	assert.Len(t, healthy.sent, 1)
}

func TestNudgeWakesRun(t *testing.T) {
	db := newDB(t)

	p := &recordingProvider{name: "webhook"}
	d := service.NewDispatcher(db, zap.NewNop(), nil, []domain.Provider{p}, metrics.Nop(), service.DispatcherConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx, time.Hour)
		close(done)
	}()

	appendEvent(t, db, 1, outbox.EventStatusChanged)
	d.Nudge()

	assert.Eventually(t, func() bool {
		offset, err := outbox.Offset(context.Background(), db, service.ConsumerID)
		return err == nil && offset != ""
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
