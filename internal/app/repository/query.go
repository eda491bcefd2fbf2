package repository

import (
	"strings"

	"gorm.io/gorm"
)

// SortOrder values accepted from clients
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// orderBy resolves a client sort key against an allow-list of columns.
// Unknown or empty keys fall back to "def DESC". Known keys sort in
// defaultDir unless sortOrder says otherwise.
func orderBy(allowed map[string]string, sortBy, sortOrder, def, defaultDir string) string {
	column, ok := allowed[strings.ToLower(strings.TrimSpace(sortBy))]
	if !ok {
		return def + " DESC"
	}

	direction := defaultDir
	switch strings.ToLower(strings.TrimSpace(sortOrder)) {
	case SortAsc:
		direction = "ASC"
	case SortDesc:
		direction = "DESC"
	}
	return column + " " + direction
}

// likePattern builds a case-insensitive substring pattern. Callers pair
// it with LOWER(column) LIKE ?.
func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

// whereContains adds LOWER(column) LIKE %value% when value is non-empty
func whereContains(query *gorm.DB, column, value string) *gorm.DB {
	if strings.TrimSpace(value) == "" {
		return query
	}
	return query.Where("LOWER("+column+") LIKE ?", likePattern(value))
}

// whereSearch matches value against any of columns
func whereSearch(query *gorm.DB, value string, columns ...string) *gorm.DB {
	if strings.TrimSpace(value) == "" || len(columns) == 0 {
		return query
	}
	pattern := likePattern(value)
	clauses := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, column := range columns {
		clauses[i] = "LOWER(" + column + ") LIKE ?"
		args[i] = pattern
	}
	return query.Where("("+strings.Join(clauses, " OR ")+")", args...)
}
