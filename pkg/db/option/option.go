package option

import (
	"github.com/parcelflow/parcelflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type Option interface {
	Apply(stmt *gorm.DB) *gorm.DB
}

type paginationOption struct {
	page pagination.Pagination
}

func ApplyPagination(page pagination.Pagination) Option {
	return paginationOption{page: page}
}

// Apply fetches one extra row so callers can detect a next page.
func (o paginationOption) Apply(stmt *gorm.DB) *gorm.DB {
	size := o.page.PageSize
	if size <= 0 {
		size = 50
	}
	stmt = stmt.Limit(size + 1)

	if o.page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(o.page.PageToken)
		if err == nil && cursor != nil && cursor.CreatedAt != "" {
			stmt = stmt.Where("created_at < ?", cursor.CreatedAt)
		}
	}
	return stmt
}
