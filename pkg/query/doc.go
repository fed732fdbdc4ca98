/*
Package query is the pure, read-only search engine over a snapshot of
series records.

The pipeline is: free-text search (whitespace-split lowercase terms, a
record matches only when every term is a substring of its concatenated
searchable text), typed filter predicates ANDed together (exact matches,
tag and media-type intersection, year-granularity date ranges honoring
the "present" sentinel), then a stable sort whose comparator is
case-insensitive and numeric-aware, with missing values collating last
in both directions.

Malformed criteria never fail a query; a filter that cannot be parsed
simply does not exclude.

Debouncer maps the UI's keystroke debouncing onto an explicit
latest-request-wins primitive.
*/
package query
