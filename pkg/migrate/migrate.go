package migrate

import (
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/log"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/metrics"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/storage"
)

// CurrentVersion is the schema version this build reads and writes.
//
// Lineage:
//
//	0  store absent
//	1  two buckets: "schedules" (schedule metadata keyed by ils number)
//	   and "series_items" (per-item rows joined by ils_number)
//	2  single "series" bucket keyed by surrogate uuid, schedule fields
//	   flattened onto each record
//	3  natural-key field renamed ils_number -> schedule_number, legacy
//	   idx_ils index dropped
//	4  delimited-string list fields coerced to sequences, natural-key
//	   collisions resolved, indexes rebuilt
const CurrentVersion = 4

// Legacy bucket names retired by the merge-of-stores transform.
var (
	legacyBucketSchedules = []byte("schedules")
	legacyBucketItems     = []byte("series_items")
	legacyIdxILS          = []byte("idx_ils")
)

// Summary aggregates what a migration run did. Per-record failures are
// counted and kept, never fatal: migration favors maximum data recovery
// over strict atomicity across the whole store.
type Summary struct {
	FromVersion int      `json:"from_version"`
	ToVersion   int      `json:"to_version"`
	Merged      int      `json:"merged"`
	Renamed     int      `json:"renamed"`
	Coerced     int      `json:"coerced"`
	Demoted     int      `json:"demoted"`
	Skipped     int      `json:"skipped"`
	Errors      []string `json:"errors,omitempty"`
}

func (s *Summary) recordError(key string, err error) {
	s.Skipped++
	s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", key, err))
	metrics.MigrationRecords.WithLabelValues("skipped").Inc()
}

// DetectVersion infers the on-disk schema version. Stores written before
// the meta bucket existed are recognized by their bucket layout.
func DetectVersion(db *bolt.DB) int {
	var v int
	_ = db.View(func(tx *bolt.Tx) error {
		v = storage.SchemaVersionTx(tx)
		if v != 0 {
			return nil
		}
		switch {
		case tx.Bucket(legacyBucketSchedules) != nil || tx.Bucket(legacyBucketItems) != nil:
			v = 1
		case tx.Bucket(storage.BucketSeries) != nil:
			v = 2
		}
		return nil
	})
	return v
}

// Run detects the on-disk version and migrates to CurrentVersion.
func Run(db *bolt.DB) (*Summary, error) {
	return Migrate(db, DetectVersion(db), CurrentVersion)
}

// Migrate applies every transform between from and to, left to right,
// stamping the schema version after each boundary so an interrupted run
// resumes where it stopped. Running against an already-migrated store is
// a no-op beyond ensuring the current buckets exist.
func Migrate(db *bolt.DB, from, to int) (*Summary, error) {
	logger := log.WithComponent("migrate")
	sum := &Summary{FromVersion: from, ToVersion: to}

	if from > to {
		return nil, fmt.Errorf("store schema version %d is newer than supported version %d", from, to)
	}

	if from == 0 {
		if err := initFresh(db); err != nil {
			return nil, fmt.Errorf("failed to initialize store: %w", err)
		}
		logger.Info().Int("version", to).Msg("initialized fresh store")
		return sum, nil
	}

	for v := from; v < to; v++ {
		var err error
		switch v {
		case 1:
			err = mergeStores(db, sum, logger)
		case 2:
			err = renameScheduleField(db, sum, logger)
		case 3:
			err = normalizeAndDedupe(db, sum, logger)
		default:
			err = fmt.Errorf("no transform for version boundary %d -> %d", v, v+1)
		}
		if err != nil {
			return sum, fmt.Errorf("migration %d -> %d failed: %w", v, v+1, err)
		}
		if err := db.Update(func(tx *bolt.Tx) error {
			return storage.SetSchemaVersionTx(tx, v+1)
		}); err != nil {
			return sum, err
		}
		logger.Info().Int("from", v).Int("to", v+1).Msg("applied schema transform")
	}

	// Buckets added after a store's last write still need creating even
	// when no version boundary was crossed.
	if err := ensureCurrentBuckets(db); err != nil {
		return sum, err
	}

	if sum.Skipped > 0 {
		logger.Warn().Int("skipped", sum.Skipped).Msg("migration completed with skipped records")
	}
	return sum, nil
}

// initFresh lays out a brand-new store at the current version.
func initFresh(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range storage.CurrentBuckets() {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return storage.SetSchemaVersionTx(tx, CurrentVersion)
	})
}

func ensureCurrentBuckets(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range storage.CurrentBuckets() {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
}
