// Package metrics defines the Prometheus collectors for store, write,
// query, exchange and migration activity. Collectors are package-level
// and registered once at init; Handler exposes the scrape endpoint for
// embedders that want one.
package metrics
