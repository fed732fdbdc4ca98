// Package exchange implements the import/export document format: a
// JSON or YAML envelope carrying exported_at, a format version tag, the
// series records and the audit trail. Import is a best-effort batch
// upsert keyed on the natural key; the legacy ils_number field is
// accepted as an alias for schedule_number so version 1 documents still
// load.
package exchange
