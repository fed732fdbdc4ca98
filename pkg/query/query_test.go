package query

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/types"
)

func fixtureRecords() []*types.SeriesRecord {
	return []*types.SeriesRecord{
		{
			ID: "a", ScheduleNumber: "25-001", ItemNumber: "1",
			RecordSeriesTitle: "Training Files", Division: "Academy",
			ApprovalStatus: types.StatusApproved, ApprovalDate: "2024-03-01",
			DatesCoveredStart: "2010", DatesCoveredEnd: "present",
			Tags: []string{"training", "personnel"},
		},
		{
			ID: "b", ScheduleNumber: "25-001", ItemNumber: "10",
			RecordSeriesTitle: "Firearms Qualification Records", Division: "Academy",
			ApprovalStatus: types.StatusDraft,
			DatesCoveredStart: "1995", DatesCoveredEnd: "2005",
			MediaTypes: []string{"paper"},
		},
		{
			ID: "c", ScheduleNumber: "25-002", ItemNumber: "2",
			RecordSeriesTitle: "Evidence Logs", Division: "Patrol",
			ApprovalStatus: types.StatusApproved, ApprovalDate: "2019-11-20",
			DatesCoveredStart: "2000", DatesCoveredEnd: "2020",
		},
		{
			ID:                "d",
			RecordSeriesTitle: "Unscheduled Correspondence",
			Notes:             "awaiting schedule assignment",
		},
	}
}

func ids(records []*types.SeriesRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestTextSearchAllTermsMustMatch(t *testing.T) {
	records := fixtureRecords()

	// Terms may hit different fields of the same record.
	got := Apply(records, Criteria{SearchText: "25-001 training"})
	assert.Equal(t, []string{"a"}, ids(got))

	got = Apply(records, Criteria{SearchText: "TRAINING"})
	assert.Equal(t, []string{"a"}, ids(got), "matching is case insensitive")

	got = Apply(records, Criteria{SearchText: "training zeppelin"})
	assert.Empty(t, got, "one unmatched term excludes the record")

	got = Apply(records, Criteria{SearchText: "   "})
	assert.Len(t, got, len(records), "blank query matches everything")
}

func TestTypedFilters(t *testing.T) {
	records := fixtureRecords()

	tests := []struct {
		name string
		c    Criteria
		want []string
	}{
		{"schedule equality", Criteria{ScheduleNumber: "25-002"}, []string{"c"}},
		{"division equality", Criteria{Division: "Academy"}, []string{"a", "b"}},
		{"status", Criteria{ApprovalStatus: types.StatusDraft}, []string{"b"}},
		{"tag overlap", Criteria{Tags: []string{"personnel", "fiscal"}}, []string{"a"}},
		{"media overlap", Criteria{MediaTypes: []string{"paper"}}, []string{"b"}},
		{"approval year range", Criteria{ApprovalYearFrom: "2020"}, []string{"a"}},
		{"approval range excludes undated", Criteria{ApprovalYearTo: "2030"}, []string{"a", "c"}},
		{
			"filters AND together",
			Criteria{Division: "Academy", ApprovalStatus: types.StatusApproved},
			[]string{"a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Apply(records, tt.c)))
		})
	}
}

func TestCoverageRangePresentSentinel(t *testing.T) {
	records := fixtureRecords()

	// An open-ended series satisfies any upper bound, even one far in
	// the past relative to the wall clock.
	got := Apply(records, Criteria{CoverageYearTo: "2012"})
	assert.Contains(t, ids(got), "a", "open-ended coverage must pass an upper bound")
	assert.NotContains(t, ids(got), "c", "2020 end is outside the bound")
	assert.Contains(t, ids(got), "b")

	// Against a lower bound the open end reads as the current year.
	futureFrom := fmt.Sprintf("%d", time.Now().Year())
	got = Apply(records, Criteria{CoverageYearFrom: futureFrom})
	assert.Equal(t, []string{"a"}, ids(got))

	// Closed ranges behave as plain year comparisons.
	got = Apply(records, Criteria{CoverageYearFrom: "2010", CoverageYearTo: "2025"})
	assert.Equal(t, []string{"a", "c"}, ids(got))
}

func TestMalformedBoundsDegradePermissive(t *testing.T) {
	records := fixtureRecords()

	got := Apply(records, Criteria{CoverageYearTo: "not-a-year"})
	assert.Len(t, got, len(records), "malformed bound must not exclude anything")

	got = Apply(records, Criteria{ApprovalYearFrom: "??"})
	assert.Len(t, got, len(records))
}

func TestSortScheduleItemNatural(t *testing.T) {
	records := fixtureRecords()

	got := Apply(records, Criteria{SortBy: SortScheduleItem, SortOrder: Asc})
	// Item "1" before item "10" numerically, then the other schedule,
	// then the record with no schedule at the very end.
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(got))

	got = Apply(records, Criteria{SortBy: SortScheduleItem, SortOrder: Desc})
	// Direction reverses real values only; the missing key still
	// collates last.
	assert.Equal(t, []string{"c", "b", "a", "d"}, ids(got))
}

func TestSortMissingKeysAlwaysLast(t *testing.T) {
	records := fixtureRecords()

	got := Apply(records, Criteria{SortBy: SortApprovalDate, SortOrder: Asc})
	require.Len(t, got, 4)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
	// b and d have no approval date; both trail in original order.
	assert.ElementsMatch(t, []string{"b", "d"}, ids(got[2:]))

	got = Apply(records, Criteria{SortBy: SortApprovalDate, SortOrder: Desc})
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
	assert.ElementsMatch(t, []string{"b", "d"}, ids(got[2:]))
}

func TestSortIsStable(t *testing.T) {
	records := []*types.SeriesRecord{
		{ID: "x", ScheduleNumber: "25-001", ItemNumber: "1", RecordSeriesTitle: "Same", Division: "One"},
		{ID: "y", ScheduleNumber: "25-001", ItemNumber: "1", RecordSeriesTitle: "Same", Division: "Two"},
	}
	got := Apply(records, Criteria{SortBy: SortTitle})
	assert.Equal(t, []string{"x", "y"}, ids(got), "equal keys keep input order")
}

func TestCompareNatural(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2", "10", -1},
		{"10", "2", 1},
		{"25-001 9", "25-001 10", -1},
		{"abc", "abd", -1},
		{"a2b", "a2b", 0},
		{"A", "a", 0},
		{"007", "7", 1},
		{"99999999999999999999", "100000000000000000000", -1},
	}
	for _, tt := range tests {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, compareNatural(tt.a, tt.b))
		})
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	records := fixtureRecords()
	order := ids(records)

	Apply(records, Criteria{SortBy: SortTitle, SortOrder: Desc})
	assert.Equal(t, order, ids(records), "input snapshot reordered")
}
