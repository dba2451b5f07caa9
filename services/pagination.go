package services

import (
	"strings"

	"rewards-settlement/models"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	maxPage         = 1_000_000 // keeps (page-1)*limit far from int overflow
)

type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	Total       int64 `json:"total"`
	Limit       int   `json:"limit"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

func newPagination(page, limit int, total int64) Pagination {
	pages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		CurrentPage: page,
		TotalPages:  pages,
		Total:       total,
		Limit:       limit,
		HasNextPage: page < pages,
		HasPrevPage: page > 1,
	}
}

// searchTerm turns free text into a LIKE pattern over models.SearchKey values.
func searchTerm(q string) string {
	key := models.SearchKey(q)
	if key == "" {
		return ""
	}
	key = strings.NewReplacer("%", "", "_", "").Replace(key)
	return "%" + key + "%"
}
