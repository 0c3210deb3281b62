package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/exportflowlabs/exportflow/internal/catalog"
)

// TransitionRecord is one appended fact in the export status ledger. Records
// are never updated or deleted; a retention policy moves old rows into the
// archive table, nothing else touches them.
type TransitionRecord struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	ExportID snowflake.ID `gorm:"not null;index:idx_history_export" json:"export_id"`

	// FromStatus is empty for no record: every persisted record captures a
	// real edge in the status graph.
	FromStatus catalog.Status `gorm:"type:text;not null" json:"from_status"`
	ToStatus   catalog.Status `gorm:"type:text;not null" json:"to_status"`
	Action     catalog.Action `gorm:"type:text;not null" json:"action"`

	ActorID      snowflake.ID `gorm:"not null;index" json:"actor_id"`
	ActorRole    string       `gorm:"type:text;not null" json:"actor_role"`
	Organization string       `gorm:"type:text;not null;index" json:"organization"`

	Reason string `gorm:"type:text" json:"reason,omitempty"`
	Notes  string `gorm:"type:text" json:"notes,omitempty"`

	OccurredAt time.Time `gorm:"not null;index:idx_history_export" json:"occurred_at"`
}

func (TransitionRecord) TableName() string { return "export_status_history" }

// Filter narrows ledger queries for compliance review.
type Filter struct {
	ExportID     snowflake.ID
	ActorID      snowflake.ID
	Organization string
	Since        time.Time
	Until        time.Time
}

// Mismatch reports an export whose stored status disagrees with the status
// derived by replaying its ledger.
type Mismatch struct {
	ExportID snowflake.ID   `json:"export_id"`
	Stored   catalog.Status `json:"stored"`
	Derived  catalog.Status `json:"derived"`
	Detail   string         `json:"detail,omitempty"`
}
