package manager

import (
	"encoding/json"
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/events"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/metrics"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/storage"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/types"
	"github.com/google/uuid"
)

// SaveRecord writes one record and its audit event in a single atomic
// unit. With isUpdate false a surrogate id is assigned and version
// starts at 1; with isUpdate true the caller's version must match the
// stored one (stale reads surface as ErrConflict) and the stored
// version is incremented. If the audit append fails the record write is
// rolled back with it and nothing is observable.
func (m *Manager) SaveRecord(rec *types.SeriesRecord, isUpdate bool) (*types.SeriesRecord, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	out := rec.Clone()
	now := m.now()
	action := types.ActionCreate
	if isUpdate {
		action = types.ActionUpdate
	}

	err := m.store.Update(func(tx *bolt.Tx) error {
		if isUpdate {
			stored, err := loadSeriesTx(tx, out.ID)
			if err != nil {
				return err
			}
			if stored.Version != out.Version {
				return fmt.Errorf("%w: version %d does not match stored version %d",
					ErrConflict, out.Version, stored.Version)
			}
			out.CreatedAt = stored.CreatedAt
			out.Version = stored.Version + 1
		} else {
			if out.ID == "" {
				out.ID = uuid.New().String()
			}
			out.CreatedAt = now
			out.Version = 1
		}
		out.UpdatedAt = now

		if out.HasNaturalKey() {
			if otherID, found := storage.FindIDByNaturalKeyTx(tx, out.ScheduleNumber, out.ItemNumber); found && otherID != out.ID {
				return fmt.Errorf("%w: schedule %s item %s already belongs to record %s",
					ErrConflict, out.ScheduleNumber, out.ItemNumber, otherID)
			}
		}

		if err := storage.PutSeriesTx(tx, out); err != nil {
			return err
		}

		payload, err := m.encodePayload(out)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAuditFailed, err)
		}
		if err := storage.AppendAuditTx(tx, m.auditEvent(action, out.ID, payload)); err != nil {
			return fmt.Errorf("%w: %v", ErrAuditFailed, err)
		}
		return nil
	})
	if err != nil {
		metrics.WriteFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, m.classify(err)
	}

	metrics.WritesTotal.WithLabelValues(string(action)).Inc()
	m.refreshGauges()

	eventType := events.EventRecordCreated
	if isUpdate {
		eventType = events.EventRecordUpdated
	}
	m.broker.Publish(&events.Event{
		Type:     eventType,
		RecordID: out.ID,
		Schedule: out.ScheduleNumber,
	})
	m.logger.Debug().Str("record_id", out.ID).Str("action", string(action)).Msg("record saved")
	return out, nil
}

// DeleteRecord removes a record and appends the delete audit event
// atomically. Audit history for the record is retained.
func (m *Manager) DeleteRecord(id string) error {
	var scheduleNumber string
	err := m.store.Update(func(tx *bolt.Tx) error {
		stored, err := loadSeriesTx(tx, id)
		if err != nil {
			return err
		}
		scheduleNumber = stored.ScheduleNumber

		if err := storage.DeleteSeriesTx(tx, id); err != nil {
			return err
		}

		payload, err := m.encodePayload(stored)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAuditFailed, err)
		}
		if err := storage.AppendAuditTx(tx, m.auditEvent(types.ActionDelete, id, payload)); err != nil {
			return fmt.Errorf("%w: %v", ErrAuditFailed, err)
		}
		return nil
	})
	if err != nil {
		metrics.WriteFailures.WithLabelValues(failureReason(err)).Inc()
		return m.classify(err)
	}

	metrics.WritesTotal.WithLabelValues(string(types.ActionDelete)).Inc()
	m.refreshGauges()
	m.broker.Publish(&events.Event{
		Type:     events.EventRecordDeleted,
		RecordID: id,
		Schedule: scheduleNumber,
	})
	return nil
}

// loadSeriesTx reads a record inside an open transaction, seeing
// uncommitted writes.
func loadSeriesTx(tx *bolt.Tx, id string) (*types.SeriesRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	data := tx.Bucket(storage.BucketSeries).Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var rec types.SeriesRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// classify folds unknown store errors into ErrUnavailable while passing
// the taxonomy errors through untouched.
func (m *Manager) classify(err error) error {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, ErrAuditFailed),
		errors.Is(err, ErrNotFound):
		return err
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrAuditFailed):
		return "audit_failed"
	case errors.Is(err, ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return "not_found"
	default:
		return "unavailable"
	}
}
