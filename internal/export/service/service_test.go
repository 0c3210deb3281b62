package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/exportflowlabs/exportflow/internal/authz"
	"github.com/exportflowlabs/exportflow/internal/catalog"
	"github.com/exportflowlabs/exportflow/internal/export/domain"
	exportrepo "github.com/exportflowlabs/exportflow/internal/export/repository"
	"github.com/exportflowlabs/exportflow/internal/export/service"
	historydomain "github.com/exportflowlabs/exportflow/internal/history/domain"
	historyrepo "github.com/exportflowlabs/exportflow/internal/history/repository"
	"github.com/exportflowlabs/exportflow/internal/metrics"
	"github.com/exportflowlabs/exportflow/internal/outbox"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type tickingClock struct {
	now time.Time
}

func (c *tickingClock) Now(ctx context.Context) time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

type countingNudger struct {
	nudges int
}

func (n *countingNudger) Nudge() { n.nudges++ }

type fixture struct {
	db     *gorm.DB
	svc    domain.Service
	nudger *countingNudger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Export{},
		&historydomain.TransitionRecord{},
		&outbox.Event{},
		&outbox.ConsumerOffset{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	resolver, err := authz.NewResolver()
	require.NoError(t, err)

	nudger := &countingNudger{}
	svc := service.New(service.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   &tickingClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		Repo:    exportrepo.Provide(),
		History: historyrepo.Provide(),
		Authz:   resolver,
		Metrics: metrics.Nop(),
		Nudger:  nudger,
	})

	return &fixture{db: db, svc: svc, nudger: nudger}
}

func exporter(id int64) domain.Actor {
	return domain.Actor{ID: snowflake.ID(id), Role: authz.RoleExporter, Organization: catalog.OrgExporter}
}

func ecxOfficer() domain.Actor {
	return domain.Actor{ID: snowflake.ID(9001), Role: authz.RoleECX, Organization: catalog.OrgECX}
}

func (f *fixture) create(t *testing.T, actor domain.Actor) *domain.Export {
	t.Helper()
	e, err := f.svc.Create(context.Background(), domain.CreateInput{
		Actor:              actor,
		ExporterName:       "Sidamo Highlands Trading",
		CoffeeType:         "yirgacheffe",
		QuantityKg:         19200,
		DestinationCountry: "DE",
		Buyer:              "Hamburg Coffee Import GmbH",
		EstimatedValueUSD:  96000,
		DocumentRefs:       []string{"DOC-001"},
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) historyOf(t *testing.T, id snowflake.ID) []historydomain.TransitionRecord {
	t.Helper()
	records, err := historyrepo.Provide().ListByExport(context.Background(), f.db, id)
	require.NoError(t, err)
	return records
}

func TestCreateExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := exporter(100)

	e := f.create(t, owner)
	assert.Equal(t, catalog.StatusDraft, e.Status)
	assert.Equal(t, owner.ID, e.ExporterID)
	assert.Contains(t, e.Reference, "sidamo-highlands-trading-")

	// Creation is not a transition: nothing in the ledger yet.
	assert.Empty(t, f.historyOf(t, e.ID))

	// But the outbox carries the created event.
	events, err := outbox.FetchAfter(ctx, f.db, "", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, outbox.EventExportCreated, events[0].EventType)
	assert.Equal(t, 1, f.nudger.nudges)
}

func TestCreateRequiresExporterRole(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), domain.CreateInput{
		Actor:        ecxOfficer(),
		ExporterName: "x",
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSubmitRejectResubmitApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := exporter(100)
	officer := ecxOfficer()

	e := f.create(t, owner)

	res, err := f.svc.Apply(ctx, e.ID, catalog.ActionSubmit, owner, domain.Payload{})
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusECXPending, res.To)
	assert.Len(t, f.historyOf(t, e.ID), 1)

	res, err = f.svc.Apply(ctx, e.ID, catalog.ActionRejectLot, officer, domain.Payload{
		Reason: "lot number does not match warehouse receipt",
	})
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusECXRejected, res.To)
	records := f.historyOf(t, e.ID)
	require.Len(t, records, 2)
	assert.Equal(t, "lot number does not match warehouse receipt", records[1].Reason)

	// Resubmission returns to the same stage's queue, not to draft.
	res, err = f.svc.Apply(ctx, e.ID, catalog.ActionResubmit, owner, domain.Payload{})
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusECXPending, res.To)
	assert.Len(t, f.historyOf(t, e.ID), 3)

	res, err = f.svc.Apply(ctx, e.ID, catalog.ActionApproveLot, officer, domain.Payload{
		LotVerificationID: "ECX-LOT-7781",
	})
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusECXVerified, res.To)
	assert.Equal(t, "ECX-LOT-7781", res.Export.LotVerificationID)
	assert.Len(t, f.historyOf(t, e.ID), 4)

	// One created event plus four transition events.
	events, err := outbox.FetchAfter(ctx, f.db, "", 10)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestRepeatedActionIsInvalidTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := exporter(100)

	e := f.create(t, owner)
	_, err := f.svc.Apply(ctx, e.ID, catalog.ActionSubmit, owner, domain.Payload{})
	require.NoError(t, err)

	_, err = f.svc.Apply(ctx, e.ID, catalog.ActionSubmit, owner, domain.Payload{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Len(t, f.historyOf(t, e.ID), 1)
}

func TestRejectionRequiresReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := exporter(100)

	e := f.create(t, owner)
	_, err := f.svc.Apply(ctx, e.ID, catalog.ActionSubmit, owner, domain.Payload{})
	require.NoError(t, err)

	_, err = f.svc.Apply(ctx, e.ID, catalog.ActionRejectLot, ecxOfficer(), domain.Payload{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	// A failed validation leaves status and ledger untouched.
	got, err := f.svc.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusECXPending, got.Status)
	assert.Len(t, f.historyOf(t, e.ID), 1)
}

func TestApprovalRequiresEvidence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := exporter(100)

	e := f.create(t, owner)
	_, err := f.svc.Apply(ctx, e.ID, catalog.ActionSubmit, owner, domain.Payload{})
	require.NoError(t, err)

	_, err = f.svc.Apply(ctx, e.ID, catalog.ActionApproveLot, ecxOfficer(), domain.Payload{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUngrantedRoleIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := exporter(100)

	e := f.create(t, owner)
	_, err := f.svc.Apply(ctx, e.ID, catalog.ActionSubmit, owner, domain.Payload{})
	require.NoError(t, err)

	// The exporter holds no approval grants anywhere in the pipeline.
	_, err = f.svc.Apply(ctx, e.ID, catalog.ActionApproveLot, owner, domain.Payload{
		LotVerificationID: "ECX-LOT-1",
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Len(t, f.historyOf(t, e.ID), 1)
}

func TestExporterCannotTouchForeignExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := exporter(100)
	stranger := exporter(200)

	e := f.create(t, owner)
	_, err := f.svc.Apply(ctx, e.ID, catalog.ActionSubmit, stranger, domain.Payload{})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := exporter(100)

	e := f.create(t, owner)
	_, err := f.svc.Apply(ctx, e.ID, catalog.ActionSubmit, owner, domain.Payload{})
	require.NoError(t, err)

	_, err = f.svc.Apply(ctx, e.ID, catalog.ActionCancel, owner, domain.Payload{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	res, err := f.svc.Apply(ctx, e.ID, catalog.ActionCancel, owner, domain.Payload{
		Reason: "buyer withdrew the order",
	})
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusCancelled, res.To)

	// Terminal: nothing applies any more.
	_, err = f.svc.Apply(ctx, e.ID, catalog.ActionResubmit, owner, domain.Payload{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.svc.Apply(ctx, e.ID, catalog.ActionCancel, owner, domain.Payload{Reason: "again"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestUpdateOnlyWhileEditable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := exporter(100)

	e := f.create(t, owner)

	qty := 21000.0
	updated, err := f.svc.Update(ctx, e.ID, owner, domain.UpdateFields{QuantityKg: &qty})
	require.NoError(t, err)
	assert.Equal(t, 21000.0, updated.QuantityKg)

	_, err = f.svc.Apply(ctx, e.ID, catalog.ActionSubmit, owner, domain.Payload{})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, e.ID, owner, domain.UpdateFields{QuantityKg: &qty})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.Update(ctx, e.ID, ecxOfficer(), domain.UpdateFields{QuantityKg: &qty})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestUpdateLeavesAuditTrail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := exporter(100)

	e := f.create(t, owner)
	_, err := f.svc.Apply(ctx, e.ID, catalog.ActionSubmit, owner, domain.Payload{})
	require.NoError(t, err)
	_, err = f.svc.Apply(ctx, e.ID, catalog.ActionRejectLot, ecxOfficer(), domain.Payload{Reason: "bad lot"})
	require.NoError(t, err)
	nudgesBefore := f.nudger.nudges

	value := 250000.0
	_, err = f.svc.Update(ctx, e.ID, owner, domain.UpdateFields{EstimatedValueUSD: &value})
	require.NoError(t, err)

	// Amendments never enter the transition ledger.
	assert.Len(t, f.historyOf(t, e.ID), 2)

	// But the outbox records the mutation: created + two transitions + update.
	events, err := outbox.FetchAfter(ctx, f.db, "", 10)
	require.NoError(t, err)
	require.Len(t, events, 4)
	last := events[len(events)-1]
	assert.Equal(t, outbox.EventExportUpdated, last.EventType)
	assert.Contains(t, string(last.Payload), `"estimated_value_usd"`)
	assert.Equal(t, nudgesBefore+1, f.nudger.nudges)
}

func TestConcurrentApprovalsOnlyOneCommits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := exporter(100)

	e := f.create(t, owner)
	_, err := f.svc.Apply(ctx, e.ID, catalog.ActionSubmit, owner, domain.Payload{})
	require.NoError(t, err)

	// One connection makes the two transactions queue on the export row the
	// way the postgres FOR UPDATE lock does.
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Apply(ctx, e.ID, catalog.ActionApproveLot, ecxOfficer(), domain.Payload{
				LotVerificationID: "ECX-LOT-7781",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var committed, lost int
	for err := range errs {
		switch {
		case err == nil:
			committed++
		case errors.Is(err, domain.ErrInvalidTransition):
			lost++
		default:
			t.Fatalf("unexpected apply error: %v", err)
		}
	}
	assert.Equal(t, 1, committed, "exactly one approval commits")
	assert.Equal(t, 1, lost, "the loser observes the winner's status")

	got, err := f.svc.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusECXVerified, got.Status)

	// submit + the single winning approval.
	assert.Len(t, f.historyOf(t, e.ID), 2)
}

func TestUpdateAllowedAgainAfterRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := exporter(100)

	e := f.create(t, owner)
	_, err := f.svc.Apply(ctx, e.ID, catalog.ActionSubmit, owner, domain.Payload{})
	require.NoError(t, err)
	_, err = f.svc.Apply(ctx, e.ID, catalog.ActionRejectLot, ecxOfficer(), domain.Payload{Reason: "bad lot"})
	require.NoError(t, err)

	qty := 18000.0
	updated, err := f.svc.Update(ctx, e.ID, owner, domain.UpdateFields{QuantityKg: &qty})
	require.NoError(t, err)
	assert.Equal(t, 18000.0, updated.QuantityKg)
}

func TestAvailableActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := exporter(100)

	e := f.create(t, owner)

	actions, err := f.svc.AvailableActions(ctx, e.ID, owner)
	require.NoError(t, err)
	assert.ElementsMatch(t, []catalog.Action{catalog.ActionSubmit, catalog.ActionCancel}, actions)

	// Another exporter sees nothing on a foreign export.
	actions, err = f.svc.AvailableActions(ctx, e.ID, exporter(200))
	require.NoError(t, err)
	assert.Empty(t, actions)

	// The ECX officer has no grant usable in DRAFT.
	actions, err = f.svc.AvailableActions(ctx, e.ID, ecxOfficer())
	require.NoError(t, err)
	assert.Empty(t, actions)

	_, err = f.svc.Apply(ctx, e.ID, catalog.ActionSubmit, owner, domain.Payload{})
	require.NoError(t, err)

	actions, err = f.svc.AvailableActions(ctx, e.ID, ecxOfficer())
	require.NoError(t, err)
	assert.ElementsMatch(t, []catalog.Action{catalog.ActionApproveLot, catalog.ActionRejectLot}, actions)
}

func TestGetUnknownExport(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), snowflake.ID(424242))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
