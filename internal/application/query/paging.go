// Package query holds the paging and sorting primitives shared by every list endpoint.
package query

import (
	"math"
	"strconv"
	"strings"

	"github.com/garyjia/proposal-approval/internal/domain/errs"
)

// Direction is a sort direction
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// SortOrder is one "field,direction" sort key
type SortOrder struct {
	Field     string
	Direction Direction
}

// Limits bounds page sizes
type Limits struct {
	DefaultSize int
	MaxSize     int
}

// DefaultLimits is used when no limits are configured
var DefaultLimits = Limits{DefaultSize: 20, MaxSize: 100}

// PageRequest selects one zero-based page of results
type PageRequest struct {
	Page int
	Size int
	Sort []SortOrder
}

// Offset returns the number of rows to skip
func (r PageRequest) Offset() int {
	return r.Page * r.Size
}

// ParsePageRequest parses raw query parameters. Empty values take defaults,
// a zero size means the default size and sizes above the maximum are clamped.
// Negative or non-numeric values and pages whose offset overflows are validation errors.
func ParsePageRequest(page, size string, sorts []string, limits Limits) (PageRequest, error) {
	if limits.DefaultSize <= 0 {
		limits.DefaultSize = DefaultLimits.DefaultSize
	}
	if limits.MaxSize <= 0 {
		limits.MaxSize = DefaultLimits.MaxSize
	}

	req := PageRequest{Size: limits.DefaultSize}

	if page = strings.TrimSpace(page); page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 0 {
			return PageRequest{}, errs.Validation("page must be a non-negative integer, got %q", page)
		}
		req.Page = n
	}

	if size = strings.TrimSpace(size); size != "" {
		n, err := strconv.Atoi(size)
		if err != nil || n < 0 {
			return PageRequest{}, errs.Validation("size must be a non-negative integer, got %q", size)
		}
		switch {
		case n == 0:
			req.Size = limits.DefaultSize
		case n > limits.MaxSize:
			req.Size = limits.MaxSize
		default:
			req.Size = n
		}
	}

	// Page*Size must fit in an int or the offset wraps
	if req.Page > math.MaxInt/req.Size {
		return PageRequest{}, errs.Validation("page %d is out of range for size %d", req.Page, req.Size)
	}

	for _, raw := range sorts {
		order, err := parseSort(raw)
		if err != nil {
			return PageRequest{}, err
		}
		if order != nil {
			req.Sort = append(req.Sort, *order)
		}
	}

	return req, nil
}

// parseSort accepts "field" or "field,asc|desc"
func parseSort(raw string) (*SortOrder, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	if len(parts) > 2 {
		return nil, errs.Validation("invalid sort %q", raw)
	}

	field := strings.TrimSpace(parts[0])
	if field == "" {
		return nil, errs.Validation("invalid sort %q", raw)
	}

	order := &SortOrder{Field: field, Direction: Asc}
	if len(parts) == 2 {
		switch strings.ToUpper(strings.TrimSpace(parts[1])) {
		case "ASC", "":
		case "DESC":
			order.Direction = Desc
		default:
			return nil, errs.Validation("invalid sort direction in %q", raw)
		}
	}
	return order, nil
}

// SortColumns maps API field names to SQL columns
type SortColumns map[string]string

// OrderBy renders an ORDER BY clause body for the request. Unknown fields are
// rejected. The fallback is used when no sort is given and is appended as a
// tie breaker otherwise so paging stays stable.
func (c SortColumns) OrderBy(sorts []SortOrder, fallback string) (string, error) {
	if len(sorts) == 0 {
		return fallback, nil
	}

	clauses := make([]string, 0, len(sorts)+1)
	for _, s := range sorts {
		col, ok := c[s.Field]
		if !ok {
			return "", errs.Validation("unknown sort field %q", s.Field)
		}
		clauses = append(clauses, col+" "+string(s.Direction))
	}
	clauses = append(clauses, fallback)

	return strings.Join(clauses, ", "), nil
}

// Page is one page of results
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
}

// NewPage assembles a page. Content is never nil so it serializes as [].
func NewPage[T any](content []T, total int64, req PageRequest) Page[T] {
	if content == nil {
		content = []T{}
	}

	pages := 0
	if req.Size > 0 {
		pages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}

	return Page[T]{
		Content:       content,
		TotalElements: total,
		TotalPages:    pages,
		Page:          req.Page,
		Size:          req.Size,
	}
}

// Map converts the content of a page, keeping the paging metadata
func Map[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := make([]U, len(p.Content))
	for i, v := range p.Content {
		out[i] = fn(v)
	}
	return Page[U]{
		Content:       out,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages,
		Page:          p.Page,
		Size:          p.Size,
	}
}
