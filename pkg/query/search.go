package query

import (
	"strings"

	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/types"
)

// searchTerms splits the query on whitespace into lowercase terms.
func searchTerms(text string) []string {
	fields := strings.Fields(text)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		terms = append(terms, strings.ToLower(f))
	}
	return terms
}

// matchesText reports whether every term is a substring of the record's
// searchable text. Terms may match in different fields; a record with no
// terms always matches.
func matchesText(rec *types.SeriesRecord, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := searchableText(rec)
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

// searchableText concatenates the record's text-bearing fields,
// lowercased and space-joined.
func searchableText(rec *types.SeriesRecord) string {
	parts := []string{
		rec.RecordSeriesTitle,
		rec.ScheduleNumber,
		rec.ItemNumber,
		rec.Division,
		rec.RetentionText,
		rec.Notes,
		rec.Extras.Description,
		rec.Extras.Contacts,
		rec.Extras.Location,
	}
	parts = append(parts, rec.Tags...)
	parts = append(parts, rec.MediaTypes...)
	parts = append(parts, rec.StatuteRefs...)
	return strings.ToLower(strings.Join(parts, " "))
}
