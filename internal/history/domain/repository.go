package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/exportflowlabs/exportflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert is called exclusively by the transition engine, inside the
	// same transaction that moves the export row.
	Insert(ctx context.Context, db *gorm.DB, rec *TransitionRecord) error

	// ListByExport returns the full ledger for one export in chronological
	// order.
	ListByExport(ctx context.Context, db *gorm.DB, exportID snowflake.ID) ([]TransitionRecord, error)

	List(ctx context.Context, db *gorm.DB, filter Filter, page pagination.Pagination) ([]TransitionRecord, *pagination.PageInfo, error)

	// ArchiveOlderThan moves records with occurred_at before the cutoff to
	// the archive table and returns how many moved.
	ArchiveOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
}
