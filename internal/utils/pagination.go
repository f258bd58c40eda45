// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Pagination bounds shared by listing and search endpoints.
const (
	DefaultPage        = 1
	DefaultPageSize    = 20
	DefaultSearchLimit = 10
	MaxPageSize        = 100
)

// NormalizePage clamps a page/pageSize pair to sane defaults and limits.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// SearchPagination is the bounded, deterministic query shape handed to the
// store for searches. Callers build it from raw query input and call
// Normalize before use; the store additionally enforces its own ORDER BY
// allow-list, so an unknown OrderBy degrades to the default rather than
// reaching SQL.
type SearchPagination struct {
	Page           int
	Limit          int
	OrderBy        string
	OrderDirection string
}

// Normalize returns a copy with defaults applied: page minimum 1, limit
// default 10 clamped to 100, order by creation time descending.
func (p SearchPagination) Normalize() SearchPagination {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit <= 0 {
		p.Limit = DefaultSearchLimit
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.OrderBy == "" {
		p.OrderBy = "created_at"
	}
	if p.OrderDirection != "asc" {
		p.OrderDirection = "desc"
	}
	return p
}

// Offset computes the row offset for the current page.
func (p SearchPagination) Offset() int {
	return (p.Page - 1) * p.Limit
}
