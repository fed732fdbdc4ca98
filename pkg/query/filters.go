package query

import (
	"regexp"
	"strconv"
	"time"

	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/types"
)

var yearRe = regexp.MustCompile(`\d{4}`)

// yearOf extracts the first 4-digit substring of a stored date string.
func yearOf(s string) (int, bool) {
	m := yearRe.FindString(s)
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return y, true
}

// boundYear parses a filter bound. A malformed bound reads as "no
// bound" so the query degrades permissive instead of erroring.
func boundYear(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	return yearOf(s)
}

// matchesFilters applies the typed predicates as one big AND.
func matchesFilters(rec *types.SeriesRecord, c Criteria) bool {
	if c.ScheduleNumber != "" && rec.ScheduleNumber != c.ScheduleNumber {
		return false
	}
	if c.Division != "" && rec.Division != c.Division {
		return false
	}
	if c.ApprovalStatus != "" && rec.ApprovalStatus != c.ApprovalStatus {
		return false
	}
	if len(c.Tags) > 0 && !anyOverlap(rec.Tags, c.Tags) {
		return false
	}
	if len(c.MediaTypes) > 0 && !anyOverlap(rec.MediaTypes, c.MediaTypes) {
		return false
	}
	if !matchesApprovalRange(rec, c.ApprovalYearFrom, c.ApprovalYearTo) {
		return false
	}
	if !matchesCoverageRange(rec, c.CoverageYearFrom, c.CoverageYearTo) {
		return false
	}
	return true
}

// anyOverlap reports whether any wanted value is present (OR within the
// set; the set as a whole ANDs with the other predicates).
func anyOverlap(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func matchesApprovalRange(rec *types.SeriesRecord, fromRaw, toRaw string) bool {
	from, hasFrom := boundYear(fromRaw)
	to, hasTo := boundYear(toRaw)
	if !hasFrom && !hasTo {
		return true
	}
	year, ok := yearOf(rec.ApprovalDate)
	if !ok {
		return false
	}
	if hasFrom && year < from {
		return false
	}
	if hasTo && year > to {
		return false
	}
	return true
}

// matchesCoverageRange evaluates the coverage filter against the
// coverage end at year granularity. The sentinel "present" means
// open-ended: it always satisfies an upper bound, and reads as the
// current year when a lower bound needs a concrete value.
func matchesCoverageRange(rec *types.SeriesRecord, fromRaw, toRaw string) bool {
	from, hasFrom := boundYear(fromRaw)
	to, hasTo := boundYear(toRaw)
	if !hasFrom && !hasTo {
		return true
	}

	open := rec.DatesCoveredEnd == types.PresentSentinel
	end, hasEnd := yearOf(rec.DatesCoveredEnd)
	if !hasEnd {
		// Fall back on the start year for records that never closed
		// out their range.
		end, hasEnd = yearOf(rec.DatesCoveredStart)
	}

	if hasFrom {
		eff := end
		if open {
			eff = time.Now().Year()
		} else if !hasEnd {
			return false
		}
		if eff < from {
			return false
		}
	}
	if hasTo && !open {
		if !hasEnd {
			return false
		}
		if end > to {
			return false
		}
	}
	return true
}
