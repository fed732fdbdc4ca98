package manager

import "errors"

// Write failure taxonomy. Callers check with errors.Is; every failure
// means the whole atomic unit aborted and nothing was written.
var (
	// ErrUnavailable means the underlying store rejected the unit.
	ErrUnavailable = errors.New("store unavailable")

	// ErrAuditFailed means the audit append could not be made; the
	// paired record write was rolled back with it.
	ErrAuditFailed = errors.New("audit append failed")

	// ErrConflict means a version mismatch or natural-key collision.
	ErrConflict = errors.New("write conflict")

	// ErrNotFound means the target record does not exist.
	ErrNotFound = errors.New("record not found")
)
