/*
Package migrate owns the on-disk schema of the retention store.

It transforms a store from whatever version it was last closed at to
CurrentVersion, exactly once, before any other component may read or
write. Each version boundary applies one ordered transform; transforms
compose left to right and each tolerates a partially-applied prior run,
so migration is monotonic and idempotent.

Failure semantics differ deliberately from the write coordinators: a
record that cannot be re-saved is logged and skipped so the rest of the
store still migrates. Records demoted by natural-key de-duplication are
never dropped; they lose the colliding schedule_number, gain a notes
breadcrumb recording the cleared value, and a schedule_unassigned audit
event marks them for manual repair.
*/
package migrate
