/*
Package types defines the core data structures of the retention inventory.

The central entity is SeriesRecord, the merge of a record series row and
its retention-schedule metadata into one flat struct keyed by a surrogate
id. AuditEvent is the append-only companion written alongside every
mutation. The remaining types are small value objects passed across
package boundaries: ScheduleEdit for bulk cascades, AuditFilter for
trail queries, ImportResult for best-effort batches.

All types serialize to JSON for storage and to JSON or YAML for the
exchange format; field tags carry the historical snake_case names so
documents exported by earlier versions of the system remain readable.
*/
package types
