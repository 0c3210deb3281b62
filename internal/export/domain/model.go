package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/exportflowlabs/exportflow/internal/authz"
	"github.com/exportflowlabs/exportflow/internal/catalog"
	"gorm.io/datatypes"
)

// Export is the tracked unit of work: one commodity shipment moving through
// the approval pipeline. The status column is the single source of truth for
// pipeline position and is only ever written by the transition engine.
type Export struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Reference    string       `gorm:"type:text;not null;uniqueIndex" json:"reference"`
	ExporterID   snowflake.ID `gorm:"not null;index" json:"exporter_id"`
	ExporterName string       `gorm:"type:text;not null" json:"exporter_name"`

	CoffeeType         string         `gorm:"type:text;not null" json:"coffee_type"`
	QuantityKg         float64        `gorm:"not null" json:"quantity_kg"`
	DestinationCountry string         `gorm:"type:text;not null" json:"destination_country"`
	Buyer              string         `gorm:"type:text" json:"buyer"`
	EstimatedValueUSD  float64        `gorm:"not null" json:"estimated_value_usd"`
	DocumentRefs       datatypes.JSON `gorm:"not null;default:'[]'" json:"document_refs"`

	Status catalog.Status `gorm:"type:text;not null;index" json:"status"`

	// Stage evidence recorded from approval payloads. Written only by the
	// engine as part of the approving transition.
	LotVerificationID    string     `gorm:"type:text" json:"lot_verification_id,omitempty"`
	LicenseNo            string     `gorm:"type:text" json:"license_no,omitempty"`
	QualityCertID        string     `gorm:"type:text" json:"quality_cert_id,omitempty"`
	QualityGrade         string     `gorm:"type:text" json:"quality_grade,omitempty"`
	OriginCertID         string     `gorm:"type:text" json:"origin_cert_id,omitempty"`
	ContractNo           string     `gorm:"type:text" json:"contract_no,omitempty"`
	BankDocumentRef      string     `gorm:"type:text" json:"bank_document_ref,omitempty"`
	FXApprovalID         string     `gorm:"type:text" json:"fx_approval_id,omitempty"`
	FXApprovedValueUSD   *float64   `json:"fx_approved_value_usd,omitempty"`
	CustomsDeclarationNo string     `gorm:"type:text" json:"customs_declaration_no,omitempty"`
	ImportDeclarationNo  string     `gorm:"type:text" json:"import_declaration_no,omitempty"`
	VesselName           string     `gorm:"type:text" json:"vessel_name,omitempty"`
	DepartureDate        *time.Time `json:"departure_date,omitempty"`
	PaymentRef           string     `gorm:"type:text" json:"payment_ref,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Export) TableName() string { return "exports" }

// Actor identifies the caller of an engine operation.
type Actor struct {
	ID           snowflake.ID
	Role         authz.Role
	Organization string
}

// CreateInput carries the attributes of a new draft export.
type CreateInput struct {
	Actor              Actor
	ExporterName       string
	CoffeeType         string
	QuantityKg         float64
	DestinationCountry string
	Buyer              string
	EstimatedValueUSD  float64
	DocumentRefs       []string
}

// UpdateFields are the domain attributes amendable while an export is in an
// editable status. Nil pointers leave the stored value untouched.
type UpdateFields struct {
	CoffeeType         *string  `json:"coffee_type,omitempty"`
	QuantityKg         *float64 `json:"quantity_kg,omitempty"`
	DestinationCountry *string  `json:"destination_country,omitempty"`
	Buyer              *string  `json:"buyer,omitempty"`
	EstimatedValueUSD  *float64 `json:"estimated_value_usd,omitempty"`
	DocumentRefs       []string `json:"document_refs,omitempty"`
}

// ListFilter narrows export listings.
type ListFilter struct {
	ExporterID snowflake.ID
	Status     catalog.Status
	SortBy     string
	OrderBy    string
}

// TransitionResult reports a committed transition.
type TransitionResult struct {
	Export *Export
	From   catalog.Status
	To     catalog.Status
}
