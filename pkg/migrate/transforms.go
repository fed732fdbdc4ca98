package migrate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/metrics"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/storage"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/types"
)

// Transforms operate on raw JSON maps rather than the current record
// struct: the whole point of a transform is that the on-disk shape
// predates the struct.

// mergeStores is the 1 -> 2 transform: collapse the "schedules" and
// "series_items" buckets into a single "series" bucket keyed by a new
// surrogate id, flattening schedule-level fields onto each item row.
func mergeStores(db *bolt.DB, sum *Summary, logger zerolog.Logger) error {
	return db.Update(func(tx *bolt.Tx) error {
		series, err := tx.CreateBucketIfNotExists(storage.BucketSeries)
		if err != nil {
			return err
		}

		// Schedule metadata keyed by ils number. Unreadable entries are
		// skipped, not fatal.
		schedules := make(map[string]map[string]any)
		if b := tx.Bucket(legacyBucketSchedules); b != nil {
			_ = b.ForEach(func(k, v []byte) error {
				var m map[string]any
				if err := json.Unmarshal(v, &m); err != nil {
					logger.Warn().Str("key", string(k)).Err(err).Msg("skipping unreadable schedule")
					sum.recordError("schedules/"+string(k), err)
					return nil
				}
				schedules[asString(m["ils_number"])] = m
				return nil
			})
		}

		joined := make(map[string]bool)
		if b := tx.Bucket(legacyBucketItems); b != nil {
			type kv struct {
				key string
				m   map[string]any
			}
			var items []kv
			_ = b.ForEach(func(k, v []byte) error {
				var m map[string]any
				if err := json.Unmarshal(v, &m); err != nil {
					logger.Warn().Str("key", string(k)).Err(err).Msg("skipping unreadable series item")
					sum.recordError("series_items/"+string(k), err)
					return nil
				}
				items = append(items, kv{key: string(k), m: m})
				return nil
			})

			for _, it := range items {
				rec := mergeItem(it.m, schedules)
				joined[asString(rec["schedule_ils"])] = true
				delete(rec, "schedule_ils")
				if err := putRawRecord(series, rec); err != nil {
					logger.Warn().Str("key", it.key).Err(err).Msg("failed to re-save merged record")
					sum.recordError("series_items/"+it.key, err)
					continue
				}
				sum.Merged++
				metrics.MigrationRecords.WithLabelValues("merged").Inc()
			}
		}

		// A schedule with no surviving items still carries user data;
		// preserve it as a bare record rather than dropping it.
		for ils, m := range schedules {
			if ils == "" || joined[ils] {
				continue
			}
			rec := map[string]any{
				"id":                  uuid.New().String(),
				"ils_number":          ils,
				"record_series_title": fmt.Sprintf("Schedule %s", ils),
			}
			copyMissing(rec, m, "division", "approval_status", "approval_date", "notes")
			if err := putRawRecord(series, rec); err != nil {
				sum.recordError("schedules/"+ils, err)
				continue
			}
			sum.Merged++
			metrics.MigrationRecords.WithLabelValues("merged").Inc()
		}

		for _, legacy := range [][]byte{legacyBucketSchedules, legacyBucketItems} {
			if tx.Bucket(legacy) != nil {
				if err := tx.DeleteBucket(legacy); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// mergeItem flattens the joined schedule's fields onto the item row and
// assigns the new surrogate key. The returned map carries the join value
// under "schedule_ils" so the caller can track orphan schedules.
func mergeItem(item map[string]any, schedules map[string]map[string]any) map[string]any {
	rec := make(map[string]any, len(item)+4)
	for k, v := range item {
		rec[k] = v
	}
	if asString(rec["id"]) == "" {
		rec["id"] = uuid.New().String()
	}
	// Older rows used "title" for what is now record_series_title.
	if asString(rec["record_series_title"]) == "" {
		if t := asString(rec["title"]); t != "" {
			rec["record_series_title"] = t
		}
	}
	delete(rec, "title")

	ils := asString(rec["ils_number"])
	rec["schedule_ils"] = ils
	if sched, ok := schedules[ils]; ok {
		copyMissing(rec, sched, "division", "approval_status", "approval_date")
		if n := asString(sched["notes"]); n != "" && asString(rec["notes"]) == "" {
			rec["notes"] = n
		}
	}
	return rec
}

// renameScheduleField is the 2 -> 3 transform: ils_number becomes
// schedule_number on every record, and the index built on the old field
// is dropped (the 3 -> 4 transform rebuilds all indexes).
func renameScheduleField(db *bolt.DB, sum *Summary, logger zerolog.Logger) error {
	return db.Update(func(tx *bolt.Tx) error {
		series := tx.Bucket(storage.BucketSeries)
		if series == nil {
			return nil
		}

		type kv struct {
			key  []byte
			data []byte
		}
		var updates []kv
		_ = series.ForEach(func(k, v []byte) error {
			var m map[string]any
			if err := json.Unmarshal(v, &m); err != nil {
				logger.Warn().Str("key", string(k)).Err(err).Msg("skipping unreadable record")
				sum.recordError("series/"+string(k), err)
				return nil
			}
			old, present := m["ils_number"]
			if !present {
				return nil
			}
			if asString(m["schedule_number"]) == "" {
				if s := asString(old); s != "" {
					m["schedule_number"] = s
				}
			}
			delete(m, "ils_number")
			data, err := json.Marshal(m)
			if err != nil {
				sum.recordError("series/"+string(k), err)
				return nil
			}
			updates = append(updates, kv{key: append([]byte(nil), k...), data: data})
			return nil
		})

		for _, u := range updates {
			if err := series.Put(u.key, u.data); err != nil {
				logger.Warn().Str("key", string(u.key)).Err(err).Msg("failed to re-save renamed record")
				sum.recordError("series/"+string(u.key), err)
				continue
			}
			sum.Renamed++
			metrics.MigrationRecords.WithLabelValues("renamed").Inc()
		}

		if tx.Bucket(legacyIdxILS) != nil {
			if err := tx.DeleteBucket(legacyIdxILS); err != nil {
				return err
			}
		}
		return nil
	})
}

// normalizeAndDedupe is the 3 -> 4 transform: coerce historically
// delimited-string list fields into sequences, make ui_extras a
// well-formed object, fill in bookkeeping fields, resolve natural-key
// collisions, and rebuild every index.
func normalizeAndDedupe(db *bolt.DB, sum *Summary, logger zerolog.Logger) error {
	return db.Update(func(tx *bolt.Tx) error {
		series := tx.Bucket(storage.BucketSeries)
		if series == nil {
			return nil
		}
		for _, bucket := range [][]byte{storage.BucketAudit, storage.AidxEntity, storage.AidxAction, storage.AidxAt, storage.AidxEntityIDAt} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}

		type kv struct {
			key []byte
			m   map[string]any
		}
		var records []kv
		_ = series.ForEach(func(k, v []byte) error {
			var m map[string]any
			if err := json.Unmarshal(v, &m); err != nil {
				logger.Warn().Str("key", string(k)).Err(err).Msg("skipping unreadable record")
				sum.recordError("series/"+string(k), err)
				return nil
			}
			records = append(records, kv{key: append([]byte(nil), k...), m: m})
			return nil
		})

		// Bucket iteration order is the store's key order, which makes
		// "first seen keeps the key" deterministic across runs.
		seen := make(map[string][]byte)
		for _, r := range records {
			changed := normalizeRecord(r.m)

			sched, item := asString(r.m["schedule_number"]), asString(r.m["item_number"])
			if sched != "" && item != "" {
				nk := sched + "\x1f" + item
				if first, dup := seen[nk]; dup {
					demoteRecord(r.m, sched)
					changed = true
					sum.Demoted++
					metrics.MigrationRecords.WithLabelValues("demoted").Inc()
					logger.Warn().
						Str("record_id", asString(r.m["id"])).
						Str("kept_by", string(first)).
						Str("schedule_number", sched).
						Str("item_number", item).
						Msg("natural key collision: schedule association cleared")

					payload, _ := json.Marshal(map[string]string{
						"record_id":       asString(r.m["id"]),
						"schedule_number": sched,
						"item_number":     item,
					})
					ev := &types.AuditEvent{
						Entity:   types.EntitySeries,
						EntityID: asString(r.m["id"]),
						Action:   types.ActionScheduleUnassigned,
						Actor:    "migration",
						Payload:  payload,
					}
					if err := storage.AppendAuditTx(tx, ev); err != nil {
						logger.Warn().Err(err).Msg("failed to record demotion audit event")
					}
				} else {
					seen[nk] = r.key
				}
			}

			if !changed {
				continue
			}
			if err := putRawRecordKeyed(series, r.key, r.m); err != nil {
				logger.Warn().Str("key", string(r.key)).Err(err).Msg("failed to re-save normalized record")
				sum.recordError("series/"+string(r.key), err)
				continue
			}
			sum.Coerced++
			metrics.MigrationRecords.WithLabelValues("coerced").Inc()
		}

		return storage.RebuildSeriesIndexesTx(tx)
	})
}

// normalizeRecord reshapes one raw record in place and reports whether
// anything changed. Already-normalized records pass through untouched,
// which is what makes re-running the transform a no-op.
func normalizeRecord(m map[string]any) bool {
	changed := false
	for _, field := range []string{"tags", "media_types", "omb_or_statute_refs", "related_series"} {
		if v, ok := m[field]; ok {
			if coerced, did := coerceList(v); did {
				m[field] = coerced
				changed = true
			}
		}
	}

	// ui_extras was free text in some snapshots.
	if v, ok := m["ui_extras"]; ok {
		if s, isStr := v.(string); isStr {
			m["ui_extras"] = map[string]any{"description": s}
			changed = true
		}
	}

	if asString(m["id"]) == "" {
		m["id"] = uuid.New().String()
		changed = true
	}
	if _, ok := m["version"].(float64); !ok {
		m["version"] = 1
		changed = true
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, field := range []string{"created_at", "updated_at"} {
		if asString(m[field]) == "" {
			m[field] = now
			changed = true
		}
	}
	return changed
}

// demoteRecord clears the colliding key and leaves a human-readable
// breadcrumb so the broken schedule association can be repaired by hand.
func demoteRecord(m map[string]any, sched string) {
	delete(m, "schedule_number")
	crumb := fmt.Sprintf("[migration] schedule association cleared; original schedule_number was %q", sched)
	if notes := asString(m["notes"]); notes != "" {
		m["notes"] = notes + "\n" + crumb
	} else {
		m["notes"] = crumb
	}
}

// coerceList turns a historically delimited string into a sequence.
// Sequences pass through; the second return reports whether a rewrite
// happened.
func coerceList(v any) ([]string, bool) {
	switch val := v.(type) {
	case string:
		var out []string
		for _, part := range strings.FieldsFunc(val, func(r rune) bool {
			return r == ',' || r == ';' || r == '\n'
		}) {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out, true
	case []any:
		out := make([]string, 0, len(val))
		clean := true
		for _, e := range val {
			s, ok := e.(string)
			if !ok {
				s = fmt.Sprint(e)
				clean = false
			}
			out = append(out, s)
		}
		return out, !clean
	default:
		return nil, false
	}
}

func putRawRecord(b *bolt.Bucket, m map[string]any) error {
	return putRawRecordKeyed(b, []byte(asString(m["id"])), m)
}

func putRawRecordKeyed(b *bolt.Bucket, key []byte, m map[string]any) error {
	if len(key) == 0 {
		return fmt.Errorf("record has no id")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func copyMissing(dst map[string]any, src map[string]any, fields ...string) {
	for _, f := range fields {
		if asString(dst[f]) == "" {
			if v := asString(src[f]); v != "" {
				dst[f] = v
			}
		}
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
