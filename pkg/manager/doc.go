/*
Package manager is the open-store handle and the only writer of the
record store.

Open migrates the on-disk schema before anything else may touch the
store, then hands back a Manager exposing the transactional write
coordinator (SaveRecord, DeleteRecord), the bulk mutation coordinator
(ApplyScheduleEdit), the query surface (Search, GetAll, Count) and the
audit trail (ListAuditEvents).

Every mutation couples its record write to an audit append inside one
bolt transaction: if either side fails the unit aborts and nothing is
observable. Failures surface through the taxonomy in errors.go;
successful units publish an event on the broker and bump the Prometheus
counters.
*/
package manager
