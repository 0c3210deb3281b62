// Package catalog defines the export status vocabulary and the directed
// transition graph between statuses. The graph is static data: adding or
// auditing a transition is a table change, not a code change.
//
// The pipeline is linear by design. Stages cannot be skipped or reordered:
//
//	DRAFT ─► ECX ─► LICENSE ─► QUALITY ─► ORIGIN ─► CONTRACT ─► BANK_DOCUMENT
//	      ─► FX ─► CUSTOMS ─► SHIPMENT ─► SHIPPED ─► ARRIVED ─► IMPORT_CUSTOMS
//	      ─► DELIVERED ─► PAYMENT ─► FX_REPATRIATED ─► COMPLETED
//
// Every decision stage has a *_PENDING status with exactly two exits (approve
// and reject). A rejected stage is re-entered via resubmit, landing on the
// same stage's pending status so that earlier approvals are never invalidated.
// CANCELLED is reachable from any non-terminal status and is terminal.
package catalog

import "fmt"

// Status is the single current stage of an export's lifecycle. Status strings
// are a compatibility surface shared with persisted rows and every
// organization's adapter; renaming one requires a coordinated migration.
type Status string

const (
	StatusDraft Status = "DRAFT"

	StatusECXPending  Status = "ECX_PENDING"
	StatusECXVerified Status = "ECX_VERIFIED"
	StatusECXRejected Status = "ECX_REJECTED"

	StatusLicensePending  Status = "LICENSE_PENDING"
	StatusLicenseApproved Status = "LICENSE_APPROVED"
	StatusLicenseRejected Status = "LICENSE_REJECTED"

	StatusQualityPending   Status = "QUALITY_PENDING"
	StatusQualityCertified Status = "QUALITY_CERTIFIED"
	StatusQualityRejected  Status = "QUALITY_REJECTED"

	StatusOriginPending  Status = "ORIGIN_PENDING"
	StatusOriginApproved Status = "ORIGIN_APPROVED"
	StatusOriginRejected Status = "ORIGIN_REJECTED"

	StatusContractPending  Status = "CONTRACT_PENDING"
	StatusContractApproved Status = "CONTRACT_APPROVED"
	StatusContractRejected Status = "CONTRACT_REJECTED"

	StatusBankDocumentPending  Status = "BANK_DOCUMENT_PENDING"
	StatusBankDocumentVerified Status = "BANK_DOCUMENT_VERIFIED"
	StatusBankDocumentRejected Status = "BANK_DOCUMENT_REJECTED"

	StatusFXPending  Status = "FX_PENDING"
	StatusFXApproved Status = "FX_APPROVED"
	StatusFXRejected Status = "FX_REJECTED"

	StatusCustomsPending  Status = "CUSTOMS_PENDING"
	StatusCustomsCleared  Status = "CUSTOMS_CLEARED"
	StatusCustomsRejected Status = "CUSTOMS_REJECTED"

	StatusShipmentPending   Status = "SHIPMENT_PENDING"
	StatusShipmentScheduled Status = "SHIPMENT_SCHEDULED"
	StatusShipmentRejected  Status = "SHIPMENT_REJECTED"

	StatusShipped Status = "SHIPPED"
	StatusArrived Status = "ARRIVED"

	StatusImportCustomsPending  Status = "IMPORT_CUSTOMS_PENDING"
	StatusImportCustomsCleared  Status = "IMPORT_CUSTOMS_CLEARED"
	StatusImportCustomsRejected Status = "IMPORT_CUSTOMS_REJECTED"

	StatusDelivered       Status = "DELIVERED"
	StatusPaymentPending  Status = "PAYMENT_PENDING"
	StatusPaymentReceived Status = "PAYMENT_RECEIVED"
	StatusFXRepatriated   Status = "FX_REPATRIATED"

	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Class buckets statuses by their role in the workflow.
type Class string

const (
	ClassDraft    Class = "draft"
	ClassPending  Class = "pending"
	ClassApproved Class = "approved"
	ClassRejected Class = "rejected"
	ClassTerminal Class = "terminal"
)

// Organization identifiers. These name authorization domains, not deployments.
const (
	OrgExporter       = "exporter-portal"
	OrgECX            = "ecx"
	OrgECTA           = "ecta"
	OrgCommercialBank = "commercial-bank"
	OrgNationalBank   = "national-bank"
	OrgCustoms        = "customs-authority"
	OrgShippingLine   = "shipping-line"
)

type statusInfo struct {
	class    Class
	org      string // organization expected to act while in this status
	stage    string // human stage name for dashboards
	progress int    // 0-100, rough pipeline progress
}

// decision stages: pending status, its two exits and the acting organization.
type stageSpec struct {
	org      string
	stage    string
	pending  Status
	approved Status
	rejected Status
	approve  Action
	reject   Action
	progress int // progress of the pending status; approved is +5
}

var stages = []stageSpec{
	{OrgECX, "ECX Lot Verification", StatusECXPending, StatusECXVerified, StatusECXRejected, ActionApproveLot, ActionRejectLot, 10},
	{OrgECTA, "Export License", StatusLicensePending, StatusLicenseApproved, StatusLicenseRejected, ActionApproveLicense, ActionRejectLicense, 20},
	{OrgECTA, "Quality Certification", StatusQualityPending, StatusQualityCertified, StatusQualityRejected, ActionApproveQuality, ActionRejectQuality, 30},
	{OrgECTA, "Origin Certification", StatusOriginPending, StatusOriginApproved, StatusOriginRejected, ActionApproveOrigin, ActionRejectOrigin, 40},
	{OrgECTA, "Sales Contract", StatusContractPending, StatusContractApproved, StatusContractRejected, ActionApproveContract, ActionRejectContract, 50},
	{OrgCommercialBank, "Bank Documents", StatusBankDocumentPending, StatusBankDocumentVerified, StatusBankDocumentRejected, ActionVerifyDocuments, ActionRejectDocuments, 60},
	{OrgNationalBank, "FX Approval", StatusFXPending, StatusFXApproved, StatusFXRejected, ActionApproveFX, ActionRejectFX, 70},
	{OrgCustoms, "Export Customs", StatusCustomsPending, StatusCustomsCleared, StatusCustomsRejected, ActionClearCustoms, ActionRejectCustoms, 78},
	{OrgShippingLine, "Shipment Booking", StatusShipmentPending, StatusShipmentScheduled, StatusShipmentRejected, ActionScheduleShipment, ActionRejectShipment, 84},
	{OrgCustoms, "Import Customs", StatusImportCustomsPending, StatusImportCustomsCleared, StatusImportCustomsRejected, ActionClearImportCustoms, ActionRejectImportCustoms, 90},
}

// forward edges between stages and through the delivery/payment tail.
type forwardSpec struct {
	from   Status
	action Action
	to     Status
}

var forwards = []forwardSpec{
	{StatusDraft, ActionSubmit, StatusECXPending},
	{StatusECXVerified, ActionSubmit, StatusLicensePending},
	{StatusLicenseApproved, ActionSubmit, StatusQualityPending},
	{StatusQualityCertified, ActionSubmit, StatusOriginPending},
	{StatusOriginApproved, ActionSubmit, StatusContractPending},
	{StatusContractApproved, ActionSubmit, StatusBankDocumentPending},
	{StatusBankDocumentVerified, ActionSubmitFX, StatusFXPending},
	{StatusFXApproved, ActionSubmit, StatusCustomsPending},
	{StatusCustomsCleared, ActionSubmit, StatusShipmentPending},
	{StatusShipmentScheduled, ActionMarkShipped, StatusShipped},
	{StatusShipped, ActionMarkArrived, StatusArrived},
	{StatusArrived, ActionSubmit, StatusImportCustomsPending},
	{StatusImportCustomsCleared, ActionConfirmDelivery, StatusDelivered},
	{StatusDelivered, ActionSubmit, StatusPaymentPending},
	{StatusPaymentPending, ActionConfirmPayment, StatusPaymentReceived},
	{StatusPaymentReceived, ActionConfirmRepatriation, StatusFXRepatriated},
	{StatusFXRepatriated, ActionComplete, StatusCompleted},
}

var (
	statuses    = map[Status]statusInfo{}
	edges       = map[Status]map[Action]Status{}
	rejectionOf = map[Status]Status{} // pending -> rejected
	pendingOf   = map[Status]Status{} // rejected -> pending
)

func addEdge(from Status, action Action, to Status) {
	m, ok := edges[from]
	if !ok {
		m = map[Action]Status{}
		edges[from] = m
	}
	if prev, dup := m[action]; dup && prev != to {
		panic(fmt.Sprintf("catalog: conflicting edge %s --%s--> %s vs %s", from, action, prev, to))
	}
	m[action] = to
}

func init() {
	statuses[StatusDraft] = statusInfo{ClassDraft, OrgExporter, "Draft", 5}

	for _, st := range stages {
		statuses[st.pending] = statusInfo{ClassPending, st.org, st.stage, st.progress}
		statuses[st.approved] = statusInfo{ClassApproved, OrgExporter, st.stage, st.progress + 5}
		statuses[st.rejected] = statusInfo{ClassRejected, OrgExporter, st.stage, 0}
		addEdge(st.pending, st.approve, st.approved)
		addEdge(st.pending, st.reject, st.rejected)
		addEdge(st.rejected, ActionResubmit, st.pending)
		rejectionOf[st.pending] = st.rejected
		pendingOf[st.rejected] = st.pending
	}

	statuses[StatusShipped] = statusInfo{ClassApproved, OrgShippingLine, "In Transit", 86}
	statuses[StatusArrived] = statusInfo{ClassApproved, OrgShippingLine, "Arrived", 88}
	statuses[StatusDelivered] = statusInfo{ClassApproved, OrgShippingLine, "Delivery", 95}
	statuses[StatusPaymentPending] = statusInfo{ClassPending, OrgCommercialBank, "Payment", 97}
	statuses[StatusPaymentReceived] = statusInfo{ClassApproved, OrgNationalBank, "Payment", 98}
	statuses[StatusFXRepatriated] = statusInfo{ClassApproved, OrgExporter, "FX Repatriation", 99}
	statuses[StatusCompleted] = statusInfo{ClassTerminal, "", "Completed", 100}
	statuses[StatusCancelled] = statusInfo{ClassTerminal, "", "Cancelled", 0}

	for _, f := range forwards {
		if _, ok := statuses[f.from]; !ok {
			panic(fmt.Sprintf("catalog: forward edge from unknown status %s", f.from))
		}
		if _, ok := statuses[f.to]; !ok {
			panic(fmt.Sprintf("catalog: forward edge to unknown status %s", f.to))
		}
		addEdge(f.from, f.action, f.to)
	}
}

// Initial returns the status assigned to a newly created export.
func Initial() Status { return StatusDraft }

// Parse converts a raw string to a Status, rejecting unknown values.
func Parse(raw string) (Status, error) {
	s := Status(raw)
	if _, ok := statuses[s]; !ok {
		return "", fmt.Errorf("unknown export status %q", raw)
	}
	return s, nil
}

// Edge resolves the target status of applying action in status from.
// The cancel action is an edge from every non-terminal status.
func Edge(from Status, action Action) (Status, bool) {
	if action == ActionCancel {
		if IsTerminal(from) {
			return "", false
		}
		return StatusCancelled, true
	}
	to, ok := edges[from][action]
	return to, ok
}

// ActionsFrom lists every action with a legal edge out of the given status,
// including cancel for non-terminal statuses. Order is unspecified.
func ActionsFrom(from Status) []Action {
	out := make([]Action, 0, len(edges[from])+1)
	for a := range edges[from] {
		out = append(out, a)
	}
	if !IsTerminal(from) {
		out = append(out, ActionCancel)
	}
	return out
}

// RejectionOf returns the rejection counterpart of a pending status.
func RejectionOf(pending Status) (Status, bool) {
	s, ok := rejectionOf[pending]
	return s, ok
}

// PendingOf returns the pending status a rejected status resubmits into.
func PendingOf(rejected Status) (Status, bool) {
	s, ok := pendingOf[rejected]
	return s, ok
}

// IsTerminal reports whether the status has no outgoing edges.
func IsTerminal(s Status) bool {
	return statuses[s].class == ClassTerminal
}

// IsEditable reports whether domain attributes may be amended in this status.
// Drafts and rejected stages are editable; everything else is frozen.
func IsEditable(s Status) bool {
	c := statuses[s].class
	return c == ClassDraft || c == ClassRejected
}

// ClassOf returns the workflow class of a status.
func ClassOf(s Status) Class { return statuses[s].class }

// Organization returns the authorization domain expected to act on a status.
func Organization(s Status) string { return statuses[s].org }

// Stage returns the human-readable workflow stage for a status.
func Stage(s Status) string { return statuses[s].stage }

// Progress returns a rough 0-100 pipeline progress figure for dashboards.
func Progress(s Status) int { return statuses[s].progress }

// All returns every known status. Order is unspecified.
func All() []Status {
	out := make([]Status, 0, len(statuses))
	for s := range statuses {
		out = append(out, s)
	}
	return out
}
