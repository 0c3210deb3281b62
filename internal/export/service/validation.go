package service

import (
	"fmt"
	"strings"

	"github.com/exportflowlabs/exportflow/internal/catalog"
	"github.com/exportflowlabs/exportflow/internal/export/domain"
)

// requiredEvidence fixes, per action, which payload fields must be present.
// This is configuration: the source of truth for "what does an approval need",
// not something inferred from handlers.
var requiredEvidence = map[catalog.Action]func(domain.Payload) error{
	catalog.ActionApproveLot: func(p domain.Payload) error {
		return requireAll(field{"lot_verification_id", p.LotVerificationID})
	},
	catalog.ActionApproveLicense: func(p domain.Payload) error {
		return requireAll(field{"license_no", p.LicenseNo})
	},
	catalog.ActionApproveQuality: func(p domain.Payload) error {
		return requireAll(
			field{"quality_cert_id", p.QualityCertID},
			field{"quality_grade", p.QualityGrade},
		)
	},
	catalog.ActionApproveOrigin: func(p domain.Payload) error {
		return requireAll(field{"origin_cert_id", p.OriginCertID})
	},
	catalog.ActionApproveContract: func(p domain.Payload) error {
		return requireAll(field{"contract_no", p.ContractNo})
	},
	catalog.ActionVerifyDocuments: func(p domain.Payload) error {
		return requireAll(field{"document_ref", p.DocumentRef})
	},
	catalog.ActionApproveFX: func(p domain.Payload) error {
		if err := requireAll(field{"fx_approval_id", p.FXApprovalID}); err != nil {
			return err
		}
		if p.FXApprovedValueUSD == nil || *p.FXApprovedValueUSD <= 0 {
			return fmt.Errorf("fx_approved_value_usd must be a positive amount")
		}
		return nil
	},
	catalog.ActionClearCustoms: func(p domain.Payload) error {
		return requireAll(field{"declaration_no", p.DeclarationNo})
	},
	catalog.ActionClearImportCustoms: func(p domain.Payload) error {
		return requireAll(field{"declaration_no", p.DeclarationNo})
	},
	catalog.ActionScheduleShipment: func(p domain.Payload) error {
		if err := requireAll(field{"vessel_name", p.VesselName}); err != nil {
			return err
		}
		if p.DepartureDate == nil {
			return fmt.Errorf("departure_date is required")
		}
		return nil
	},
	catalog.ActionConfirmPayment: func(p domain.Payload) error {
		return requireAll(field{"payment_ref", p.PaymentRef})
	},
}

// validatePayload runs before any mutation. A failure leaves status and
// history untouched.
func validatePayload(action catalog.Action, p domain.Payload) error {
	if catalog.IsRejection(action) || action == catalog.ActionCancel {
		if strings.TrimSpace(p.Reason) == "" {
			return fmt.Errorf("%w: %s requires a non-empty reason", domain.ErrValidation, action)
		}
	}
	if check, ok := requiredEvidence[action]; ok {
		if err := check(p); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrValidation, action, err)
		}
	}
	return nil
}

type field struct {
	name  string
	value string
}

func requireAll(fields ...field) error {
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%s is required", f.name)
		}
	}
	return nil
}

// applyEvidence records approval payload fields onto the export's stage
// columns. The engine never recomputes derived quantities; only values
// explicitly carried by the payload are written.
func applyEvidence(e *domain.Export, action catalog.Action, p domain.Payload) {
	switch action {
	case catalog.ActionApproveLot:
		e.LotVerificationID = p.LotVerificationID
	case catalog.ActionApproveLicense:
		e.LicenseNo = p.LicenseNo
	case catalog.ActionApproveQuality:
		e.QualityCertID = p.QualityCertID
		e.QualityGrade = p.QualityGrade
	case catalog.ActionApproveOrigin:
		e.OriginCertID = p.OriginCertID
	case catalog.ActionApproveContract:
		e.ContractNo = p.ContractNo
	case catalog.ActionVerifyDocuments:
		e.BankDocumentRef = p.DocumentRef
	case catalog.ActionApproveFX:
		e.FXApprovalID = p.FXApprovalID
		e.FXApprovedValueUSD = p.FXApprovedValueUSD
	case catalog.ActionClearCustoms:
		e.CustomsDeclarationNo = p.DeclarationNo
	case catalog.ActionClearImportCustoms:
		e.ImportDeclarationNo = p.DeclarationNo
	case catalog.ActionScheduleShipment:
		e.VesselName = p.VesselName
		e.DepartureDate = p.DepartureDate
	case catalog.ActionConfirmPayment:
		e.PaymentRef = p.PaymentRef
	}
}
