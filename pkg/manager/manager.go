package manager

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/events"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/log"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/metrics"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/migrate"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/query"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/storage"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/types"
)

// Manager is the open store handle handed to UI collaborators. It owns
// the only write paths (the single-record coordinator and the bulk
// cascade) and the read/query surface.
type Manager struct {
	store  *storage.BoltStore
	broker *events.Broker
	logger zerolog.Logger
	actor  string

	now           func() time.Time
	encodePayload func(any) ([]byte, error)
}

// Config holds configuration for opening a Manager
type Config struct {
	DataDir string
	// Actor is recorded on every audit event this handle writes.
	Actor string
}

// Open opens the store under cfg.DataDir, migrating it to the current
// schema version first. No reads or writes happen before migration
// completes.
func Open(cfg *Config) (*Manager, *migrate.Summary, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	store, err := storage.Open(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	summary, err := migrate.Run(store.DB())
	if err != nil {
		store.Close()
		return nil, summary, fmt.Errorf("failed to migrate store: %w", err)
	}

	broker := events.NewBroker()
	broker.Start()

	m := &Manager{
		store:         store,
		broker:        broker,
		logger:        log.WithComponent("manager"),
		actor:         cfg.Actor,
		now:           func() time.Time { return time.Now().UTC() },
		encodePayload: json.Marshal,
	}

	if summary.FromVersion != summary.ToVersion {
		broker.Publish(&events.Event{
			Type:    events.EventStoreMigrated,
			Message: fmt.Sprintf("schema migrated %d -> %d", summary.FromVersion, summary.ToVersion),
		})
	}
	m.refreshGauges()
	return m, summary, nil
}

// Close stops the event broker and closes the store.
func (m *Manager) Close() error {
	m.broker.Stop()
	return m.store.Close()
}

// Events returns the broker UI collaborators subscribe to.
func (m *Manager) Events() *events.Broker {
	return m.broker
}

// Store exposes the read-only store surface.
func (m *Manager) Store() storage.Store {
	return m.store
}

// GetRecord returns one record by surrogate id.
func (m *Manager) GetRecord(id string) (*types.SeriesRecord, error) {
	rec, err := m.store.GetSeries(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return rec, nil
}

// GetAll returns a snapshot of every record.
func (m *Manager) GetAll() ([]*types.SeriesRecord, error) {
	return m.store.ListSeries()
}

// Count returns the number of records in the store.
func (m *Manager) Count() (int, error) {
	return m.store.CountSeries()
}

// Search runs the query engine over a snapshot. When an equality
// criterion has an index, the candidate set is fetched through it; that
// is a cardinality optimization only, the engine re-applies every
// predicate regardless.
func (m *Manager) Search(c query.Criteria) ([]*types.SeriesRecord, error) {
	var (
		snapshot []*types.SeriesRecord
		err      error
	)
	switch {
	case c.ScheduleNumber != "":
		snapshot, err = m.store.ListSeriesBySchedule(c.ScheduleNumber)
	case c.Division != "":
		snapshot, err = m.store.ListSeriesByDivision(c.Division)
	default:
		snapshot, err = m.store.ListSeries()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return query.Apply(snapshot, c), nil
}

// ListAuditEvents returns the audit trail, newest first.
func (m *Manager) ListAuditEvents(filter types.AuditFilter) ([]*types.AuditEvent, error) {
	return m.store.ListAuditEvents(filter)
}

// Stats summarizes the open store.
func (m *Manager) Stats() (*types.StoreStats, error) {
	series, err := m.store.CountSeries()
	if err != nil {
		return nil, err
	}
	audit, err := m.store.CountAuditEvents()
	if err != nil {
		return nil, err
	}
	version, err := m.store.SchemaVersion()
	if err != nil {
		return nil, err
	}
	return &types.StoreStats{
		SeriesCount:   series,
		AuditCount:    audit,
		SchemaVersion: version,
	}, nil
}

func (m *Manager) refreshGauges() {
	if n, err := m.store.CountSeries(); err == nil {
		metrics.SeriesTotal.Set(float64(n))
	}
	if n, err := m.store.CountAuditEvents(); err == nil {
		metrics.AuditEventsTotal.Set(float64(n))
	}
}

// auditEvent builds the audit companion for one record mutation.
func (m *Manager) auditEvent(action types.AuditAction, entityID string, payload []byte) *types.AuditEvent {
	return &types.AuditEvent{
		Entity:   types.EntitySeries,
		EntityID: entityID,
		Action:   action,
		Actor:    m.actor,
		At:       m.now(),
		Payload:  payload,
	}
}
