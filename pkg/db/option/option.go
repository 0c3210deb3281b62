// Package option composes common gorm query modifiers.
package option

import (
	"github.com/exportflowlabs/exportflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type Option interface {
	Apply(*gorm.DB) *gorm.DB
}

type optionFunc func(*gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// ApplyPagination translates a normalized pagination request into
// LIMIT/OFFSET clauses.
func ApplyPagination(p pagination.Pagination) Option {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		p = p.Normalize()
		return db.Limit(p.Limit()).Offset(p.Offset())
	})
}

// WithSortBy orders by the requested column when it is in the allow list,
// falling back to the given default expression otherwise.
func WithSortBy(column, direction, fallback string, allowed map[string]bool) Option {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if allowed[column] {
			if direction != "asc" {
				direction = "desc"
			}
			return db.Order(column + " " + direction)
		}
		return db.Order(fallback)
	})
}
