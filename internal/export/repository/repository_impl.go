package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/exportflowlabs/exportflow/internal/export/domain"
	"github.com/exportflowlabs/exportflow/pkg/db/option"
	"github.com/exportflowlabs/exportflow/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, e *domain.Export) error {
	return db.WithContext(ctx).Create(e).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Export, error) {
	var e domain.Export
	err := db.WithContext(ctx).Where("id = ?", id).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Export, error) {
	stmt := db.WithContext(ctx)
	// sqlite (tests) has no row locks; its writer lock serializes instead.
	if db.Dialector.Name() == "postgres" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var e domain.Export
	err := stmt.Where("id = ?", id).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, e *domain.Export) error {
	if e == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Save(e).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Export, *pagination.PageInfo, error) {
	page = page.Normalize()

	stmt := db.WithContext(ctx).Model(&domain.Export{})
	if filter.ExporterID != 0 {
		stmt = stmt.Where("exporter_id = ?", filter.ExporterID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	stmt = option.WithSortBy(filter.SortBy, filter.OrderBy, "created_at desc, id desc", map[string]bool{
		"created_at": true,
		"updated_at": true,
		"status":     true,
	}).Apply(stmt)
	stmt = option.ApplyPagination(page).Apply(stmt)

	var items []*domain.Export
	if err := stmt.Find(&items).Error; err != nil {
		return nil, nil, err
	}
	return items, pagination.NewPageInfo(page, total), nil
}
