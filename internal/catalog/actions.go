package catalog

import "fmt"

// Action is a requested move through the status graph. Action strings are a
// compatibility surface shared with every adapter.
type Action string

const (
	// Exporter actions.
	ActionSubmit   Action = "submit"
	ActionResubmit Action = "resubmit"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"

	// ECX actions.
	ActionApproveLot Action = "approve_lot"
	ActionRejectLot  Action = "reject_lot"

	// ECTA actions.
	ActionApproveLicense  Action = "approve_license"
	ActionRejectLicense   Action = "reject_license"
	ActionApproveQuality  Action = "approve_quality"
	ActionRejectQuality   Action = "reject_quality"
	ActionApproveOrigin   Action = "approve_origin"
	ActionRejectOrigin    Action = "reject_origin"
	ActionApproveContract Action = "approve_contract"
	ActionRejectContract  Action = "reject_contract"

	// Commercial bank actions.
	ActionVerifyDocuments Action = "verify_documents"
	ActionRejectDocuments Action = "reject_documents"
	ActionSubmitFX        Action = "submit_fx"
	ActionConfirmPayment  Action = "confirm_payment"

	// National bank actions.
	ActionApproveFX           Action = "approve_fx"
	ActionRejectFX            Action = "reject_fx"
	ActionConfirmRepatriation Action = "confirm_repatriation"

	// Customs actions.
	ActionClearCustoms        Action = "clear_customs"
	ActionRejectCustoms       Action = "reject_customs"
	ActionClearImportCustoms  Action = "clear_import_customs"
	ActionRejectImportCustoms Action = "reject_import_customs"

	// Shipping line actions.
	ActionScheduleShipment Action = "schedule_shipment"
	ActionRejectShipment   Action = "reject_shipment"
	ActionMarkShipped      Action = "mark_shipped"
	ActionMarkArrived      Action = "mark_arrived"
	ActionConfirmDelivery  Action = "confirm_delivery"
)

var allActions = map[Action]struct{}{
	ActionSubmit: {}, ActionResubmit: {}, ActionCancel: {}, ActionComplete: {},
	ActionApproveLot: {}, ActionRejectLot: {},
	ActionApproveLicense: {}, ActionRejectLicense: {},
	ActionApproveQuality: {}, ActionRejectQuality: {},
	ActionApproveOrigin: {}, ActionRejectOrigin: {},
	ActionApproveContract: {}, ActionRejectContract: {},
	ActionVerifyDocuments: {}, ActionRejectDocuments: {},
	ActionSubmitFX: {}, ActionConfirmPayment: {},
	ActionApproveFX: {}, ActionRejectFX: {}, ActionConfirmRepatriation: {},
	ActionClearCustoms: {}, ActionRejectCustoms: {},
	ActionClearImportCustoms: {}, ActionRejectImportCustoms: {},
	ActionScheduleShipment: {}, ActionRejectShipment: {},
	ActionMarkShipped: {}, ActionMarkArrived: {}, ActionConfirmDelivery: {},
}

// ParseAction converts a raw string to an Action, rejecting unknown values.
func ParseAction(raw string) (Action, error) {
	a := Action(raw)
	if _, ok := allActions[a]; !ok {
		return "", fmt.Errorf("unknown export action %q", raw)
	}
	return a, nil
}

// IsRejection reports whether the action moves a pending status to its
// rejection counterpart. Rejections always require a reason.
func IsRejection(a Action) bool {
	switch a {
	case ActionRejectLot, ActionRejectLicense, ActionRejectQuality,
		ActionRejectOrigin, ActionRejectContract, ActionRejectDocuments,
		ActionRejectFX, ActionRejectCustoms, ActionRejectImportCustoms,
		ActionRejectShipment:
		return true
	}
	return false
}
