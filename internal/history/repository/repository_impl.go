package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/exportflowlabs/exportflow/internal/history/domain"
	"github.com/exportflowlabs/exportflow/pkg/db/option"
	"github.com/exportflowlabs/exportflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rec *domain.TransitionRecord) error {
	return db.WithContext(ctx).Create(rec).Error
}

func (r *repo) ListByExport(ctx context.Context, db *gorm.DB, exportID snowflake.ID) ([]domain.TransitionRecord, error) {
	var records []domain.TransitionRecord
	err := db.WithContext(ctx).
		Where("export_id = ?", exportID).
		Order("occurred_at ASC, id ASC").
		Find(&records).Error
	return records, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.Filter, page pagination.Pagination) ([]domain.TransitionRecord, *pagination.PageInfo, error) {
	page = page.Normalize()

	stmt := db.WithContext(ctx).Model(&domain.TransitionRecord{})
	if filter.ExportID != 0 {
		stmt = stmt.Where("export_id = ?", filter.ExportID)
	}
	if filter.ActorID != 0 {
		stmt = stmt.Where("actor_id = ?", filter.ActorID)
	}
	if filter.Organization != "" {
		stmt = stmt.Where("organization = ?", filter.Organization)
	}
	if !filter.Since.IsZero() {
		stmt = stmt.Where("occurred_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		stmt = stmt.Where("occurred_at < ?", filter.Until)
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	stmt = stmt.Order("occurred_at ASC, id ASC")
	stmt = option.ApplyPagination(page).Apply(stmt)

	var records []domain.TransitionRecord
	if err := stmt.Find(&records).Error; err != nil {
		return nil, nil, err
	}
	return records, pagination.NewPageInfo(page, total), nil
}

func (r *repo) ArchiveOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	var moved int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`
			INSERT INTO export_status_history_archive
			SELECT * FROM export_status_history WHERE occurred_at < ?
		`, cutoff)
		if res.Error != nil {
			return res.Error
		}
		moved = res.RowsAffected
		return tx.Exec(`DELETE FROM export_status_history WHERE occurred_at < ?`, cutoff).Error
	})
	return moved, err
}
