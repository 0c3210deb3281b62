package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/exportflowlabs/exportflow/pkg/db/pagination"
)

// ExportFormat selects the serialization of a compliance export.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatJSON ExportFormat = "json"
)

// ExportRequest bounds a compliance export of the transition ledger.
type ExportRequest struct {
	Since        time.Time
	Until        time.Time
	Organization string
	ExportID     snowflake.ID
	Format       ExportFormat
}

// ExportResult carries the serialized ledger slice plus a checksum the
// receiving auditor can verify independently.
type ExportResult struct {
	Data     []byte
	Checksum string
	Format   ExportFormat
	Count    int
}

// Service is the read and audit surface over the ledger.
type Service interface {
	Timeline(ctx context.Context, exportID snowflake.ID) ([]TransitionRecord, error)
	Search(ctx context.Context, filter Filter, page pagination.Pagination) ([]TransitionRecord, *pagination.PageInfo, error)
	ComplianceExport(ctx context.Context, req ExportRequest) (*ExportResult, error)

	// Reconcile replays one export's ledger through the status graph and
	// compares the derived status with the stored one. A nil mismatch
	// means the two agree.
	Reconcile(ctx context.Context, exportID snowflake.ID) (*Mismatch, error)

	// ReconcileRecent reconciles exports updated since the given time, up
	// to limit, and returns every mismatch found.
	ReconcileRecent(ctx context.Context, since time.Time, limit int) ([]Mismatch, error)
}
