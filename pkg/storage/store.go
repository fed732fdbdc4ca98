package storage

import (
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/types"
)

// Store defines the read surface of the record store. Writes go through
// the Tx helpers inside a single bolt Update so that callers control the
// atomic unit boundary.
type Store interface {
	// Series
	GetSeries(id string) (*types.SeriesRecord, error)
	ListSeries() ([]*types.SeriesRecord, error)
	ListSeriesBySchedule(scheduleNumber string) ([]*types.SeriesRecord, error)
	ListSeriesByDivision(division string) ([]*types.SeriesRecord, error)
	FindByNaturalKey(scheduleNumber, itemNumber string) (*types.SeriesRecord, error)
	CountSeries() (int, error)

	// Audit trail
	ListAuditEvents(filter types.AuditFilter) ([]*types.AuditEvent, error)
	CountAuditEvents() (int, error)

	// Utility
	SchemaVersion() (int, error)
	Close() error
}
