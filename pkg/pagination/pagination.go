// Package pagination provides types and utilities for paginated data queries.
// Four strategies share one request shape: offset (page numbers), cursor (opaque
// position token), time (exclusive timestamp bound) and id (exclusive id bound).
package pagination

import (
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/query"
)

// Strategy selects how a PageRequest expresses its position.
type Strategy string

const (
	StrategyOffset Strategy = "offset"
	StrategyCursor Strategy = "cursor"
	StrategyTime   Strategy = "time"
	StrategyID     Strategy = "id"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyOffset, StrategyCursor, StrategyTime, StrategyID:
		return true
	}
	return false
}

// SortFields wraps []query.SortField with flexible JSON unmarshaling.
// Accepts either a string ("name,-created_at") or an array of SortField objects.
type SortFields []query.SortField

// UnmarshalJSON supports unmarshaling from a comma-separated string or array format.
func (s *SortFields) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = query.ParseSortFields(str)
		return nil
	}

	var fields []query.SortField
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*s = fields
	return nil
}

// PageRequest represents a client request for a page of data with optional search and sorting.
// Page applies to the offset strategy, Cursor, Before and BeforeID to the keyset strategies.
// Keyset strategies ignore Sort and use the caller's fixed ordering. A time request
// carrying BeforeID continues inside a run of items sharing the Before timestamp.
type PageRequest struct {
	Strategy Strategy   `json:"strategy,omitempty"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Search   *string    `json:"search,omitempty"`
	Sort     SortFields `json:"sort,omitempty"`
	Cursor   string     `json:"cursor,omitempty"`
	Before   *time.Time `json:"before,omitempty"`
	BeforeID string     `json:"before_id,omitempty"`
}

// Normalize adjusts the request to ensure valid pagination values based on the config.
func (r *PageRequest) Normalize(cfg Config) {
	if !r.Strategy.Valid() {
		r.Strategy = StrategyOffset
	}
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = cfg.DefaultPageSize
	}
	if r.PageSize > cfg.MaxPageSize {
		r.PageSize = cfg.MaxPageSize
	}
}

// Offset calculates the number of records to skip based on page and page size.
func (r *PageRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// PageRequestFromQuery parses pagination parameters from URL query values.
// Supported parameters: strategy, page, page_size, search, sort, cursor, before (RFC 3339)
// and before_id.
func PageRequestFromQuery(values url.Values, cfg Config) PageRequest {
	page, _ := strconv.Atoi(values.Get("page"))
	pageSize, _ := strconv.Atoi(values.Get("page_size"))

	var search *string
	if s := values.Get("search"); s != "" {
		search = &s
	}

	var before *time.Time
	if b := values.Get("before"); b != "" {
		if ts, err := time.Parse(time.RFC3339Nano, b); err == nil {
			before = &ts
		}
	}

	req := PageRequest{
		Strategy: Strategy(values.Get("strategy")),
		Page:     page,
		PageSize: pageSize,
		Search:   search,
		Sort:     query.ParseSortFields(values.Get("sort")),
		Cursor:   values.Get("cursor"),
		Before:   before,
		BeforeID: values.Get("before_id"),
	}

	req.Normalize(cfg)
	return req
}

// PageResult holds a page of data along with pagination metadata.
// Offset results carry Total, Page and TotalPages. Keyset results carry the
// position of the next page for their strategy.
type PageResult[T any] struct {
	Data         []T        `json:"data"`
	Strategy     Strategy   `json:"strategy"`
	Total        int        `json:"total,omitempty"`
	Page         int        `json:"page,omitempty"`
	PageSize     int        `json:"page_size"`
	TotalPages   int        `json:"total_pages,omitempty"`
	HasMore      bool       `json:"has_more"`
	NextCursor   string     `json:"next_cursor,omitempty"`
	NextBefore   *time.Time `json:"next_before,omitempty"`
	NextBeforeID string     `json:"next_before_id,omitempty"`
}

// NewPageResult creates an offset PageResult with calculated total pages.
func NewPageResult[T any](data []T, total, page, pageSize int) PageResult[T] {
	totalPages := total / pageSize
	if total%pageSize != 0 {
		totalPages++
	}
	if totalPages < 1 {
		totalPages = 1
	}

	if data == nil {
		data = []T{}
	}

	return PageResult[T]{
		Data:       data,
		Strategy:   StrategyOffset,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}
}

// NewSeekResult creates a keyset PageResult from rows fetched with a limit of
// pageSize+1. position extracts the (timestamp, id) of an item and fills the next
// position for the strategy when more rows remain.
func NewSeekResult[T any](
	rows []T,
	strategy Strategy,
	pageSize int,
	position func(T) (time.Time, string),
) PageResult[T] {
	data, hasMore := rows, false
	if len(rows) > pageSize {
		data, hasMore = rows[:pageSize], true
	}
	if strategy == StrategyTime && hasMore {
		data = TrimTrailingTies(data, rows[pageSize], position)
	}
	if data == nil {
		data = []T{}
	}

	result := PageResult[T]{
		Data:     data,
		Strategy: strategy,
		PageSize: pageSize,
		HasMore:  hasMore,
	}

	if !hasMore || len(data) == 0 {
		return result
	}

	ts, id := position(data[len(data)-1])
	switch strategy {
	case StrategyCursor:
		result.NextCursor = EncodeCursor(Cursor{Timestamp: ts, ID: id})
	case StrategyTime:
		result.NextBefore = &ts
		if next, _ := position(rows[pageSize]); next.Equal(ts) {
			result.NextBeforeID = id
		}
	case StrategyID:
		result.NextBeforeID = id
	}

	return result
}

// TrimTrailingTies removes the trailing run of items sharing a timestamp with next,
// the first item of the following page. An exclusive timestamp bound would skip the
// rest of that run otherwise. The page is returned unchanged when every item shares
// the timestamp; NewSeekResult then adds the id of the last item to the position.
func TrimTrailingTies[T any](data []T, next T, position func(T) (time.Time, string)) []T {
	boundary, _ := position(next)
	end := len(data)
	for end > 0 {
		ts, _ := position(data[end-1])
		if !ts.Equal(boundary) {
			break
		}
		end--
	}
	if end == 0 {
		return data
	}
	return data[:end]
}
