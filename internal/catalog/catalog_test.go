package catalog_test

import (
	"testing"

	"github.com/exportflowlabs/exportflow/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	for _, s := range catalog.All() {
		parsed, err := catalog.Parse(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := catalog.Parse("ECTA_LICENSE_PENDING")
	assert.Error(t, err, "legacy alias statuses are not part of the catalog")
	_, err = catalog.ParseAction("APPROVE_LICENSE")
	assert.Error(t, err)
}

func TestHappyPathIsLinear(t *testing.T) {
	path := []struct {
		action catalog.Action
		want   catalog.Status
	}{
		{catalog.ActionSubmit, catalog.StatusECXPending},
		{catalog.ActionApproveLot, catalog.StatusECXVerified},
		{catalog.ActionSubmit, catalog.StatusLicensePending},
		{catalog.ActionApproveLicense, catalog.StatusLicenseApproved},
		{catalog.ActionSubmit, catalog.StatusQualityPending},
		{catalog.ActionApproveQuality, catalog.StatusQualityCertified},
		{catalog.ActionSubmit, catalog.StatusOriginPending},
		{catalog.ActionApproveOrigin, catalog.StatusOriginApproved},
		{catalog.ActionSubmit, catalog.StatusContractPending},
		{catalog.ActionApproveContract, catalog.StatusContractApproved},
		{catalog.ActionSubmit, catalog.StatusBankDocumentPending},
		{catalog.ActionVerifyDocuments, catalog.StatusBankDocumentVerified},
		{catalog.ActionSubmitFX, catalog.StatusFXPending},
		{catalog.ActionApproveFX, catalog.StatusFXApproved},
		{catalog.ActionSubmit, catalog.StatusCustomsPending},
		{catalog.ActionClearCustoms, catalog.StatusCustomsCleared},
		{catalog.ActionSubmit, catalog.StatusShipmentPending},
		{catalog.ActionScheduleShipment, catalog.StatusShipmentScheduled},
		{catalog.ActionMarkShipped, catalog.StatusShipped},
		{catalog.ActionMarkArrived, catalog.StatusArrived},
		{catalog.ActionSubmit, catalog.StatusImportCustomsPending},
		{catalog.ActionClearImportCustoms, catalog.StatusImportCustomsCleared},
		{catalog.ActionConfirmDelivery, catalog.StatusDelivered},
		{catalog.ActionSubmit, catalog.StatusPaymentPending},
		{catalog.ActionConfirmPayment, catalog.StatusPaymentReceived},
		{catalog.ActionConfirmRepatriation, catalog.StatusFXRepatriated},
		{catalog.ActionComplete, catalog.StatusCompleted},
	}

	cur := catalog.Initial()
	for _, step := range path {
		next, ok := catalog.Edge(cur, step.action)
		require.True(t, ok, "expected edge %s --%s-->", cur, step.action)
		assert.Equal(t, step.want, next)
		cur = next
	}
	assert.True(t, catalog.IsTerminal(cur))
}

func TestRejectionAndResubmitStayWithinStage(t *testing.T) {
	rejected, ok := catalog.Edge(catalog.StatusQualityPending, catalog.ActionRejectQuality)
	require.True(t, ok)
	assert.Equal(t, catalog.StatusQualityRejected, rejected)
	assert.True(t, catalog.IsEditable(rejected))

	// Resubmit lands on the same stage's pending status, never on DRAFT.
	back, ok := catalog.Edge(rejected, catalog.ActionResubmit)
	require.True(t, ok)
	assert.Equal(t, catalog.StatusQualityPending, back)

	counterpart, ok := catalog.RejectionOf(catalog.StatusQualityPending)
	require.True(t, ok)
	assert.Equal(t, rejected, counterpart)

	pending, ok := catalog.PendingOf(rejected)
	require.True(t, ok)
	assert.Equal(t, catalog.StatusQualityPending, pending)
}

func TestEveryPendingStageHasApproveRejectResubmit(t *testing.T) {
	for _, s := range catalog.All() {
		if catalog.ClassOf(s) != catalog.ClassPending {
			continue
		}
		rejected, ok := catalog.RejectionOf(s)
		if !ok {
			// PAYMENT_PENDING awaits confirmation only; there is no
			// rejection stage for received funds.
			assert.Equal(t, catalog.StatusPaymentPending, s)
			continue
		}
		back, ok := catalog.Edge(rejected, catalog.ActionResubmit)
		require.True(t, ok, "rejected status %s must resubmit", rejected)
		assert.Equal(t, s, back)
		assert.Equal(t, catalog.ClassRejected, catalog.ClassOf(rejected))
	}
}

func TestCancelFromAnyNonTerminal(t *testing.T) {
	for _, s := range catalog.All() {
		to, ok := catalog.Edge(s, catalog.ActionCancel)
		if catalog.IsTerminal(s) {
			assert.False(t, ok, "terminal status %s must not cancel", s)
			continue
		}
		require.True(t, ok, "non-terminal status %s must cancel", s)
		assert.Equal(t, catalog.StatusCancelled, to)
	}

	// Nothing leads out of a terminal status.
	assert.Empty(t, catalog.ActionsFrom(catalog.StatusCompleted))
	assert.Empty(t, catalog.ActionsFrom(catalog.StatusCancelled))
}

func TestUnknownEdgesAreRejected(t *testing.T) {
	_, ok := catalog.Edge(catalog.StatusDraft, catalog.ActionApproveFX)
	assert.False(t, ok)
	_, ok = catalog.Edge(catalog.StatusECXVerified, catalog.ActionApproveLot)
	assert.False(t, ok, "approving an already verified lot is not an edge")
}

func TestStageMetadata(t *testing.T) {
	assert.Equal(t, "FX Approval", catalog.Stage(catalog.StatusFXPending))
	assert.Equal(t, catalog.OrgNationalBank, catalog.Organization(catalog.StatusFXPending))
	assert.Equal(t, 100, catalog.Progress(catalog.StatusCompleted))
	assert.Equal(t, 0, catalog.Progress(catalog.StatusCancelled))
	assert.Greater(t, catalog.Progress(catalog.StatusFXApproved), catalog.Progress(catalog.StatusECXVerified))
}
