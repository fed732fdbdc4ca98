package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/types"
)

var (
	// Bucket names
	BucketSeries = []byte("series")
	BucketAudit  = []byte("audit")
	BucketMeta   = []byte("meta")

	// Secondary index buckets over series
	IdxScheduleItem  = []byte("idx_schedule_item")
	IdxTitle         = []byte("idx_title")
	IdxDivision      = []byte("idx_division")
	IdxSchedule      = []byte("idx_schedule")
	IdxCoverageStart = []byte("idx_coverage_start")
	IdxTags          = []byte("idx_tags")

	// Audit index buckets
	AidxEntity     = []byte("aidx_entity")
	AidxAction     = []byte("aidx_action")
	AidxAt         = []byte("aidx_at")
	AidxEntityIDAt = []byte("aidx_entity_id_at")

	// Meta keys
	KeySchemaVersion = []byte("schema_version")
)

// Index keys are "<value>\x00<record id>" so equality lookups become
// prefix scans; compound keys join their parts with \x1f.
const (
	idxSep      = "\x00"
	compoundSep = "\x1f"
)

// ErrNotFound is returned when a record or audit event does not exist.
var ErrNotFound = errors.New("not found")

// CurrentBuckets returns every bucket the current schema version uses.
func CurrentBuckets() [][]byte {
	return [][]byte{
		BucketSeries, BucketAudit, BucketMeta,
		IdxScheduleItem, IdxTitle, IdxDivision, IdxSchedule,
		IdxCoverageStart, IdxTags,
		AidxEntity, AidxAction, AidxAt, AidxEntityIDAt,
	}
}

// SeriesIndexBuckets returns the index buckets derived from series data.
func SeriesIndexBuckets() [][]byte {
	return [][]byte{
		IdxScheduleItem, IdxTitle, IdxDivision, IdxSchedule,
		IdxCoverageStart, IdxTags,
	}
}

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// Open opens (or creates) the database file under dataDir. Buckets are
// not created here; the schema migrator owns bucket layout and must run
// before any other access.
func Open(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "retention.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// NewWithDB wraps an already-open database.
func NewWithDB(db *bolt.DB) *BoltStore {
	return &BoltStore{db: db}
}

// DB exposes the underlying database for the migrator and for tests.
func (s *BoltStore) DB() *bolt.DB {
	return s.db
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Update runs fn inside one read-write transaction: the atomic unit.
func (s *BoltStore) Update(fn func(tx *bolt.Tx) error) error {
	return s.db.Update(fn)
}

// View runs fn inside one read-only transaction.
func (s *BoltStore) View(fn func(tx *bolt.Tx) error) error {
	return s.db.View(fn)
}

// --- Series reads ---

func (s *BoltStore) GetSeries(id string) (*types.SeriesRecord, error) {
	var rec types.SeriesRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(BucketSeries).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("series %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *BoltStore) ListSeries() ([]*types.SeriesRecord, error) {
	var records []*types.SeriesRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketSeries).ForEach(func(k, v []byte) error {
			var rec types.SeriesRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, &rec)
			return nil
		})
	})
	return records, err
}

// ListSeriesBySchedule fetches via the schedule_number equality index.
func (s *BoltStore) ListSeriesBySchedule(scheduleNumber string) ([]*types.SeriesRecord, error) {
	return s.listByIndex(IdxSchedule, scheduleNumber)
}

// ListSeriesByDivision fetches via the division equality index.
func (s *BoltStore) ListSeriesByDivision(division string) ([]*types.SeriesRecord, error) {
	return s.listByIndex(IdxDivision, division)
}

// ListSeriesByTag fetches via the multi-valued tags index.
func (s *BoltStore) ListSeriesByTag(tag string) ([]*types.SeriesRecord, error) {
	return s.listByIndex(IdxTags, tag)
}

func (s *BoltStore) listByIndex(bucket []byte, value string) ([]*types.SeriesRecord, error) {
	if value == "" {
		return nil, nil
	}
	var records []*types.SeriesRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		series := tx.Bucket(BucketSeries)
		prefix := []byte(value + idxSep)
		c := tx.Bucket(bucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			data := series.Get(v)
			if data == nil {
				continue // stale index entry
			}
			var rec types.SeriesRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}
			records = append(records, &rec)
		}
		return nil
	})
	return records, err
}

// FindByNaturalKey returns the first record holding the
// (schedule_number, item_number) pair, or ErrNotFound.
func (s *BoltStore) FindByNaturalKey(scheduleNumber, itemNumber string) (*types.SeriesRecord, error) {
	if scheduleNumber == "" || itemNumber == "" {
		return nil, fmt.Errorf("natural key incomplete: %w", ErrNotFound)
	}
	var rec *types.SeriesRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		series := tx.Bucket(BucketSeries)
		prefix := []byte(naturalKey(scheduleNumber, itemNumber) + idxSep)
		c := tx.Bucket(IdxScheduleItem).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			data := series.Get(v)
			if data == nil {
				continue
			}
			var r types.SeriesRecord
			if err := json.Unmarshal(data, &r); err != nil {
				return err
			}
			rec = &r
			return nil
		}
		return fmt.Errorf("series %s/%s: %w", scheduleNumber, itemNumber, ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// FindIDByNaturalKeyTx resolves the natural key inside an open
// transaction, seeing uncommitted writes. Used for uniqueness checks.
func FindIDByNaturalKeyTx(tx *bolt.Tx, scheduleNumber, itemNumber string) (string, bool) {
	if scheduleNumber == "" || itemNumber == "" {
		return "", false
	}
	idx := tx.Bucket(IdxScheduleItem)
	if idx == nil {
		return "", false
	}
	prefix := []byte(naturalKey(scheduleNumber, itemNumber) + idxSep)
	c := idx.Cursor()
	k, v := c.Seek(prefix)
	if k != nil && bytes.HasPrefix(k, prefix) {
		return string(v), true
	}
	return "", false
}

func (s *BoltStore) CountSeries() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(BucketSeries).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *BoltStore) CountAuditEvents() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(BucketAudit).Stats().KeyN
		return nil
	})
	return n, err
}

// SchemaVersion reads the stored schema version, 0 when unset.
func (s *BoltStore) SchemaVersion() (int, error) {
	var v int
	err := s.db.View(func(tx *bolt.Tx) error {
		v = SchemaVersionTx(tx)
		return nil
	})
	return v, err
}

// SchemaVersionTx reads the schema version inside an open transaction.
func SchemaVersionTx(tx *bolt.Tx) int {
	meta := tx.Bucket(BucketMeta)
	if meta == nil {
		return 0
	}
	data := meta.Get(KeySchemaVersion)
	if data == nil {
		return 0
	}
	v, err := strconv.Atoi(string(data))
	if err != nil {
		return 0
	}
	return v
}

// SetSchemaVersionTx stamps the schema version inside an open transaction.
func SetSchemaVersionTx(tx *bolt.Tx, version int) error {
	meta, err := tx.CreateBucketIfNotExists(BucketMeta)
	if err != nil {
		return err
	}
	return meta.Put(KeySchemaVersion, []byte(strconv.Itoa(version)))
}

// --- Series writes (transaction-scoped) ---

// PutSeriesTx writes a record and maintains every series index, removing
// entries for the previously stored version first.
func PutSeriesTx(tx *bolt.Tx, rec *types.SeriesRecord) error {
	series := tx.Bucket(BucketSeries)
	if series == nil {
		return fmt.Errorf("series bucket missing")
	}
	if old := series.Get([]byte(rec.ID)); old != nil {
		var prev types.SeriesRecord
		if err := json.Unmarshal(old, &prev); err == nil {
			if err := removeSeriesIndexesTx(tx, &prev); err != nil {
				return err
			}
		}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := series.Put([]byte(rec.ID), data); err != nil {
		return err
	}
	return addSeriesIndexesTx(tx, rec)
}

// DeleteSeriesTx removes a record and its index entries.
func DeleteSeriesTx(tx *bolt.Tx, id string) error {
	series := tx.Bucket(BucketSeries)
	data := series.Get([]byte(id))
	if data == nil {
		return fmt.Errorf("series %s: %w", id, ErrNotFound)
	}
	var rec types.SeriesRecord
	if err := json.Unmarshal(data, &rec); err == nil {
		if err := removeSeriesIndexesTx(tx, &rec); err != nil {
			return err
		}
	}
	return series.Delete([]byte(id))
}

func addSeriesIndexesTx(tx *bolt.Tx, rec *types.SeriesRecord) error {
	for bucket, keys := range seriesIndexEntries(rec) {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			continue
		}
		for _, k := range keys {
			if err := b.Put([]byte(k), []byte(rec.ID)); err != nil {
				return err
			}
		}
	}
	return nil
}

func removeSeriesIndexesTx(tx *bolt.Tx, rec *types.SeriesRecord) error {
	for bucket, keys := range seriesIndexEntries(rec) {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			continue
		}
		for _, k := range keys {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}
	}
	return nil
}

// seriesIndexEntries maps index bucket name to the entry keys a record
// contributes.
func seriesIndexEntries(rec *types.SeriesRecord) map[string][]string {
	entries := make(map[string][]string)
	add := func(bucket []byte, value string) {
		if value == "" {
			return
		}
		name := string(bucket)
		entries[name] = append(entries[name], value+idxSep+rec.ID)
	}
	if rec.HasNaturalKey() {
		add(IdxScheduleItem, naturalKey(rec.ScheduleNumber, rec.ItemNumber))
	}
	add(IdxTitle, strings.ToLower(rec.RecordSeriesTitle))
	add(IdxDivision, rec.Division)
	add(IdxSchedule, rec.ScheduleNumber)
	add(IdxCoverageStart, rec.DatesCoveredStart)
	for _, tag := range rec.Tags {
		add(IdxTags, tag)
	}
	return entries
}

func naturalKey(scheduleNumber, itemNumber string) string {
	return scheduleNumber + compoundSep + itemNumber
}

// RebuildSeriesIndexesTx drops and refills every series index bucket
// from the series bucket contents. Used by migration.
func RebuildSeriesIndexesTx(tx *bolt.Tx) error {
	for _, bucket := range SeriesIndexBuckets() {
		if tx.Bucket(bucket) != nil {
			if err := tx.DeleteBucket(bucket); err != nil {
				return err
			}
		}
		if _, err := tx.CreateBucket(bucket); err != nil {
			return err
		}
	}
	return tx.Bucket(BucketSeries).ForEach(func(k, v []byte) error {
		var rec types.SeriesRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return nil // unreadable records carry no index entries
		}
		return addSeriesIndexesTx(tx, &rec)
	})
}

// --- Audit trail ---

// AppendAuditTx appends one audit event and maintains its indexes. The
// event id and timestamp are assigned here when unset.
func AppendAuditTx(tx *bolt.Tx, ev *types.AuditEvent) error {
	audit := tx.Bucket(BucketAudit)
	if audit == nil {
		return fmt.Errorf("audit bucket missing")
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := audit.Put([]byte(ev.ID), data); err != nil {
		return err
	}
	at := ev.At.UTC().Format(time.RFC3339Nano)
	indexes := map[string]string{
		string(AidxEntity):     ev.Entity + idxSep + ev.ID,
		string(AidxAction):     string(ev.Action) + idxSep + ev.ID,
		string(AidxAt):         at + idxSep + ev.ID,
		string(AidxEntityIDAt): ev.Entity + compoundSep + ev.EntityID + compoundSep + at + idxSep + ev.ID,
	}
	for bucket, key := range indexes {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			continue
		}
		if err := b.Put([]byte(key), []byte(ev.ID)); err != nil {
			return err
		}
	}
	return nil
}

// ListAuditEvents returns events newest-first via the at index.
func (s *BoltStore) ListAuditEvents(filter types.AuditFilter) ([]*types.AuditEvent, error) {
	var events []*types.AuditEvent
	err := s.db.View(func(tx *bolt.Tx) error {
		audit := tx.Bucket(BucketAudit)
		c := tx.Bucket(AidxAt).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			data := audit.Get(v)
			if data == nil {
				continue
			}
			var ev types.AuditEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				return err
			}
			if !matchesAuditFilter(&ev, filter) {
				continue
			}
			events = append(events, &ev)
			if filter.Limit > 0 && len(events) >= filter.Limit {
				return nil
			}
		}
		return nil
	})
	return events, err
}

func matchesAuditFilter(ev *types.AuditEvent, f types.AuditFilter) bool {
	if f.Entity != "" && ev.Entity != f.Entity {
		return false
	}
	if f.EntityID != "" && ev.EntityID != f.EntityID {
		return false
	}
	if f.Action != "" && ev.Action != f.Action {
		return false
	}
	if !f.From.IsZero() && ev.At.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ev.At.After(f.To) {
		return false
	}
	return true
}
