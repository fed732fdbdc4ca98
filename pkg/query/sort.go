package query

import (
	"sort"
	"strings"
	"time"

	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/types"
)

// sortRecords orders the result set with a stable comparator. Records
// missing the sort key always collate after records that have it, in
// both directions; the order flag reverses only the comparison between
// real values.
func sortRecords(records []*types.SeriesRecord, by SortKey, order SortOrder) {
	if by == "" {
		by = SortScheduleItem
	}
	desc := order == Desc

	sort.SliceStable(records, func(i, j int) bool {
		ki, missI := sortKey(records[i], by)
		kj, missJ := sortKey(records[j], by)
		if missI != missJ {
			return missJ // missing sorts last regardless of direction
		}
		c := compareNatural(ki, kj)
		if desc {
			c = -c
		}
		return c < 0
	})
}

// sortKey extracts the comparator key; the second return reports a
// missing value.
func sortKey(rec *types.SeriesRecord, by SortKey) (string, bool) {
	switch by {
	case SortTitle:
		return rec.RecordSeriesTitle, rec.RecordSeriesTitle == ""
	case SortDivision:
		return rec.Division, rec.Division == ""
	case SortApprovalDate:
		return rec.ApprovalDate, rec.ApprovalDate == ""
	case SortCoverageStart:
		return rec.DatesCoveredStart, rec.DatesCoveredStart == ""
	case SortUpdatedAt:
		if rec.UpdatedAt.IsZero() {
			return "", true
		}
		return rec.UpdatedAt.UTC().Format(time.RFC3339Nano), false
	default: // SortScheduleItem
		if rec.ScheduleNumber == "" {
			return "", true
		}
		return rec.ScheduleNumber + " " + rec.ItemNumber, false
	}
}

// compareNatural is a case-insensitive, numeric-aware string comparison:
// digit runs compare by value, so "2" sorts before "10".
func compareNatural(a, b string) int {
	a, b = strings.ToLower(a), strings.ToLower(b)
	for a != "" && b != "" {
		if isDigit(a[0]) && isDigit(b[0]) {
			ra, restA := digitRun(a)
			rb, restB := digitRun(b)
			if c := compareDigitRuns(ra, rb); c != 0 {
				return c
			}
			a, b = restA, restB
			continue
		}
		if a[0] != b[0] {
			if a[0] < b[0] {
				return -1
			}
			return 1
		}
		a, b = a[1:], b[1:]
	}
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	default:
		return 1
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func digitRun(s string) (run, rest string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

// compareDigitRuns compares two digit runs by numeric value without
// parsing, so arbitrarily long runs cannot overflow.
func compareDigitRuns(a, b string) int {
	ta := strings.TrimLeft(a, "0")
	tb := strings.TrimLeft(b, "0")
	if len(ta) != len(tb) {
		if len(ta) < len(tb) {
			return -1
		}
		return 1
	}
	if c := strings.Compare(ta, tb); c != 0 {
		return c
	}
	// Equal value; fewer leading zeros first for determinism.
	switch {
	case len(a) == len(b):
		return 0
	case len(a) < len(b):
		return -1
	default:
		return 1
	}
}
