// Package events provides the in-process broker that broadcasts store
// mutations (record saves, deletes, schedule cascades, imports) to UI
// subscribers. Delivery is buffered and non-blocking; a slow subscriber
// drops events rather than stalling the writer.
package events
