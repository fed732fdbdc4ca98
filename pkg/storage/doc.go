/*
Package storage provides BoltDB-backed persistence for the retention
inventory.

All data is serialized as JSON and kept in separate buckets:

	series              SeriesRecord by surrogate id
	audit               AuditEvent by surrogate id (append-only)
	meta                schema_version and other store metadata
	idx_schedule_item   (schedule_number, item_number) -> id
	idx_title           lowercased title -> id
	idx_division        division -> id
	idx_schedule        schedule_number -> id
	idx_coverage_start  dates_covered_start -> id
	idx_tags            tag -> id (multi-valued)
	aidx_entity         entity -> event id
	aidx_action         action -> event id
	aidx_at             RFC3339Nano timestamp -> event id
	aidx_entity_id_at   (entity, entity_id, at) -> event id

Index buckets hold "<value>\x00<id>" keys so that equality lookups are
cursor prefix scans and a value may map to any number of records.

One bolt Update is the system's atomic unit: the write coordinators run
record puts and audit appends inside a single Update so they commit or
abort together. Reads run in View transactions and return detached
copies, never bolt-owned byte slices.

The schema migrator owns bucket layout; Open deliberately creates no
buckets so that a store closed at an older schema version is migrated
before anything else reads it.
*/
package storage
