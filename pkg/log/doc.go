// Package log wraps zerolog with a process-wide logger and child-logger
// helpers for the fields that recur across the inventory (component,
// record id, schedule number).
package log
