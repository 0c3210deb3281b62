package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/exportflowlabs/exportflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, e *Export) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Export, error)
	// FindByIDForUpdate locks the row for the duration of the surrounding
	// transaction; concurrent engine calls on the same export serialize on
	// this lock.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Export, error)
	Update(ctx context.Context, db *gorm.DB, e *Export) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Export, *pagination.PageInfo, error)
}
