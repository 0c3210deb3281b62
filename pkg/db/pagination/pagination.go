// Package pagination holds the page/limit request shape shared by list
// endpoints and repositories.
package pagination

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

type Pagination struct {
	Page     int
	PageSize int
}

// Normalize clamps the request into sane bounds.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p Pagination) Offset() int { return (p.Page - 1) * p.PageSize }
func (p Pagination) Limit() int  { return p.PageSize }

// PageInfo describes the page actually returned.
type PageInfo struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

func NewPageInfo(p Pagination, total int64) *PageInfo {
	pages := total / int64(p.PageSize)
	if total%int64(p.PageSize) != 0 {
		pages++
	}
	return &PageInfo{Page: p.Page, PageSize: p.PageSize, Total: total, TotalPages: pages}
}
