package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/exportflowlabs/exportflow/internal/metrics"
	"github.com/exportflowlabs/exportflow/internal/notify/domain"
	"github.com/exportflowlabs/exportflow/internal/outbox"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ConsumerID = "notification_dispatcher"
	BatchSize  = 50
)

// Dispatcher drains the outbox and fans each event out to every configured
// provider. It runs strictly after commit; the engine only nudges it.
type Dispatcher struct {
	db         *gorm.DB
	log        *zap.Logger
	compliance *zap.Logger
	rdb        *redis.Client
	providers  []domain.Provider
	metrics    *metrics.Metrics
	dedupTTL   time.Duration

	nudge chan struct{}
}

type DispatcherConfig struct {
	// ComplianceLog mirrors every drained event into the compliance logger.
	ComplianceLog bool
	DedupTTL      time.Duration
}

func NewDispatcher(db *gorm.DB, log *zap.Logger, rdb *redis.Client, providers []domain.Provider, m *metrics.Metrics, cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		db:        db,
		log:       log.Named("notify.dispatcher"),
		rdb:       rdb,
		providers: providers,
		metrics:   m,
		dedupTTL:  cfg.DedupTTL,
		nudge:     make(chan struct{}, 1),
	}
	if cfg.ComplianceLog {
		d.compliance = log.Named("compliance")
	}
	if d.dedupTTL <= 0 {
		d.dedupTTL = 24 * time.Hour
	}
	return d
}

// Nudge wakes the dispatcher without blocking. A nudge while one is already
// pending is a no-op; the pending drain will see the new event anyway.
func (d *Dispatcher) Nudge() {
	select {
	case d.nudge <- struct{}{}:
	default:
	}
}

// Run drains the outbox until the context is cancelled, waking on every
// nudge and on the interval tick as a safety net.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.nudge:
		case <-ticker.C:
		}
		if err := d.drain(ctx); err != nil {
			d.log.Error("outbox drain failed", zap.Error(err))
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) error {
	for {
		n, err := d.ProcessEvents(ctx)
		if err != nil || n < BatchSize {
			return err
		}
	}
}

// ProcessEvents drains one batch and returns how many events it handled.
func (d *Dispatcher) ProcessEvents(ctx context.Context) (int, error) {
	lastID, err := outbox.Offset(ctx, d.db, ConsumerID)
	if err != nil {
		return 0, err
	}

	events, err := outbox.FetchAfter(ctx, d.db, lastID, BatchSize)
	if err != nil {
		return 0, err
	}

	for _, ev := range events {
		d.dispatch(ctx, ev)
		// Offset moves per event: a crash re-delivers at most the event
		// in flight, and the dedup key suppresses the duplicate.
		if err := outbox.CommitOffset(ctx, d.db, ConsumerID, ev.ID, time.Now().UTC()); err != nil {
			return 0, err
		}
	}
	return len(events), nil
}

func (d *Dispatcher) dispatch(ctx context.Context, ev outbox.Event) {
	var data map[string]any
	if err := json.Unmarshal(ev.Payload, &data); err != nil {
		d.log.Error("malformed outbox payload",
			zap.String("event_id", ev.ID),
			zap.Error(err))
		return
	}

	n := domain.Notification{
		EventID:   ev.ID,
		ExportID:  ev.ExportID,
		EventType: ev.EventType,
		Data:      data,
	}

	if d.compliance != nil {
		d.compliance.Info("event dispatched",
			zap.String("event_id", ev.ID),
			zap.String("event_type", ev.EventType),
			zap.String("export_id", ev.ExportID.String()))
	}

	for _, p := range d.providers {
		if !d.claim(ctx, ev.ID, p.Name()) {
			continue
		}
		if err := p.Send(ctx, n); err != nil {
			d.log.Warn("notification provider failed",
				zap.String("provider", p.Name()),
				zap.String("event_id", ev.ID),
				zap.Error(err))
			d.metrics.EventsDispatched.WithLabelValues(p.Name(), "error").Inc()
			continue
		}
		d.metrics.EventsDispatched.WithLabelValues(p.Name(), "ok").Inc()
	}
}

// claim takes the per-provider dedup key. Without redis every event is
// claimed; the offset alone then guards against re-delivery.
func (d *Dispatcher) claim(ctx context.Context, eventID, provider string) bool {
	if d.rdb == nil {
		return true
	}
	key := "exportflow:dispatched:" + eventID + ":" + provider
	ok, err := d.rdb.SetNX(ctx, key, 1, d.dedupTTL).Result()
	if err != nil {
		d.log.Warn("dedup check failed, sending anyway", zap.Error(err))
		return true
	}
	return ok
}
