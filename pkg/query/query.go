package query

import (
	"time"

	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/metrics"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/types"
)

// SortKey selects the comparator field.
type SortKey string

const (
	SortScheduleItem  SortKey = "schedule_item"
	SortTitle         SortKey = "title"
	SortDivision      SortKey = "division"
	SortApprovalDate  SortKey = "approval_date"
	SortCoverageStart SortKey = "coverage_start"
	SortUpdatedAt     SortKey = "updated_at"
)

// SortOrder selects the comparator direction.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Criteria describes one search. Zero-valued fields do not filter;
// malformed values (e.g. a non-numeric year) degrade to "does not
// exclude" rather than failing the query.
type Criteria struct {
	SearchText string

	ScheduleNumber string
	Division       string
	ApprovalStatus types.ApprovalStatus
	Tags           []string
	MediaTypes     []string

	ApprovalYearFrom string
	ApprovalYearTo   string
	CoverageYearFrom string
	CoverageYearTo   string

	SortBy    SortKey
	SortOrder SortOrder
}

// Apply runs the full pipeline over a snapshot: text search, filter
// predicates, then the stable sort. The input slice is not modified.
func Apply(records []*types.SeriesRecord, c Criteria) []*types.SeriesRecord {
	start := time.Now()
	defer func() {
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}()

	terms := searchTerms(c.SearchText)
	out := make([]*types.SeriesRecord, 0, len(records))
	for _, rec := range records {
		if !matchesText(rec, terms) {
			continue
		}
		if !matchesFilters(rec, c) {
			continue
		}
		out = append(out, rec)
	}
	sortRecords(out, c.SortBy, c.SortOrder)
	return out
}
