package utils

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// PaginationParams represents pagination parameters
type PaginationParams struct {
	Page     int
	PageSize int
	Offset   int
}

// Unbounded reports whether the caller asked for everything.
func (p PaginationParams) Unbounded() bool {
	return p.PageSize == 0
}

// GetPaginationParams extracts page and limit from the query. A zero
// defaultPageSize means "no limit" when the caller did not send one.
func GetPaginationParams(c echo.Context, defaultPageSize int) PaginationParams {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("limit"))

	if page <= 0 {
		page = 1
	}

	if pageSize <= 0 || pageSize > 500 {
		pageSize = defaultPageSize
	}

	offset := 0
	if pageSize > 0 {
		offset = (page - 1) * pageSize
	}

	return PaginationParams{
		Page:     page,
		PageSize: pageSize,
		Offset:   offset,
	}
}
