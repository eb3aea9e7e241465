package registry

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/DoyleJ11/otrio-backend/internal/protocol"
)

// SortField selects the ordering GET /rooms applies before pagination.
type SortField string

const (
	SortByName     SortField = "name"
	SortByCreated  SortField = "created"
	SortByActivity SortField = "activity"
)

// ListFilter narrows and orders the rooms returned by List. The zero
// value applies no privacy or joinability filter and lists rooms oldest
// first (by creation time), first 20.
type ListFilter struct {
	NameContains string
	PublicOnly   bool
	JoinableOnly bool
	SortBy       SortField
	SortDesc     bool
	Limit        int
	Offset       int
}

const defaultListLimit = 20

// ListResult is the page of rooms List returns: Items is the page
// itself, Total is the count of rooms matching filter before paging,
// and HasMore reports whether rooms remain past this page's end.
type ListResult struct {
	Items   []protocol.RoomSummary
	Total   int
	HasMore bool
}

// list must only be called from the actor loop goroutine: it reads
// reg.rooms directly and calls each candidate room's own mailbox for a
// fresh summary, so ordering and filtering always see current data
// rather than a stale cached row.
func (reg *Registry) list(filter ListFilter) ListResult {
	type row struct {
		summary    protocol.RoomSummary
		name       string
		createdAt  time.Time
		lastActive time.Time
	}

	rows := make([]row, 0, len(reg.rooms))
	needle := reg.caser.String(filter.NameContains)

	for _, r := range reg.rooms {
		if filter.PublicOnly && r.IsPrivate {
			continue
		}
		if needle != "" && !strings.Contains(reg.caser.String(r.Name), needle) {
			continue
		}

		ctx, cancel := context.WithTimeout(reg.ctx, 2*time.Second)
		summary, err := r.Summary(ctx)
		cancel()
		if err != nil {
			continue // room raced to termination between snapshot and here
		}
		if filter.JoinableOnly && (summary.Status != string(protocol.RoomWaiting) || summary.PlayerCount >= summary.Capacity) {
			continue
		}

		rows = append(rows, row{
			summary:    summary,
			name:       r.Name,
			createdAt:  r.CreatedAt,
			lastActive: r.LastActivityAt,
		})
	}

	less := func(i, j int) bool {
		switch filter.SortBy {
		case SortByName:
			return rows[i].name < rows[j].name
		case SortByActivity:
			return rows[i].lastActive.Before(rows[j].lastActive)
		default: // SortByCreated, and the zero value
			return rows[i].createdAt.Before(rows[j].createdAt)
		}
	}
	if filter.SortDesc {
		base := less
		less = func(i, j int) bool { return base(j, i) }
	}
	sort.SliceStable(rows, less)

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	total := len(rows)
	if offset >= total {
		return ListResult{Items: []protocol.RoomSummary{}, Total: total, HasMore: false}
	}
	end := offset + limit
	if end > total {
		end = total
	}

	out := make([]protocol.RoomSummary, end-offset)
	for i, rr := range rows[offset:end] {
		out[i] = rr.summary
	}
	return ListResult{Items: out, Total: total, HasMore: end < total}
}
