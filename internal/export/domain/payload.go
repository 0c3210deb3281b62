package domain

import "time"

// Payload carries the action-specific evidence for a transition. Which
// fields are required per action is fixed configuration in the engine, not
// inferred; see service.requiredEvidence.
type Payload struct {
	// Reason is mandatory for every reject_* action and for cancel.
	Reason string `json:"reason,omitempty"`

	LotVerificationID string `json:"lot_verification_id,omitempty"`
	LicenseNo         string `json:"license_no,omitempty"`
	QualityCertID     string `json:"quality_cert_id,omitempty"`
	QualityGrade      string `json:"quality_grade,omitempty"`
	OriginCertID      string `json:"origin_cert_id,omitempty"`
	ContractNo        string `json:"contract_no,omitempty"`
	DocumentRef       string `json:"document_ref,omitempty"`

	FXApprovalID       string   `json:"fx_approval_id,omitempty"`
	FXApprovedValueUSD *float64 `json:"fx_approved_value_usd,omitempty"`

	DeclarationNo string     `json:"declaration_no,omitempty"`
	VesselName    string     `json:"vessel_name,omitempty"`
	DepartureDate *time.Time `json:"departure_date,omitempty"`
	PaymentRef    string     `json:"payment_ref,omitempty"`

	// Notes is free text carried onto the history record.
	Notes string `json:"notes,omitempty"`

	// Fields amends domain attributes; only legal when leaving an
	// editable status (resubmit from a rejection, submit from draft).
	Fields *UpdateFields `json:"fields,omitempty"`
}
