package manager

import (
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/events"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/metrics"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/storage"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/types"
)

// ApplyScheduleEdit cascades one schedule-level edit across every record
// sharing scheduleNumber, as a single atomic unit: N record writes and N
// audit appends commit or abort together. Returns the number of records
// updated; zero matches opens no write transaction at all.
//
// The cascade is deliberately stricter than import: the N writes are one
// logical edit replicated, not N independent edits, so a partial cascade
// is never observable.
func (m *Manager) ApplyScheduleEdit(scheduleNumber string, edit types.ScheduleEdit) (int, error) {
	if scheduleNumber == "" {
		return 0, fmt.Errorf("schedule number is required")
	}
	if edit.IsZero() {
		return 0, nil
	}

	matches, err := m.store.ListSeriesBySchedule(scheduleNumber)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(matches) == 0 {
		return 0, nil
	}
	// Index scans return store order already; sorting keeps the cascade
	// deterministic if that ever changes.
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })

	now := m.now()
	updated := make([]*types.SeriesRecord, 0, len(matches))
	for _, rec := range matches {
		merged := edit.ApplyTo(rec)
		merged.UpdatedAt = now
		merged.Version = rec.Version + 1
		updated = append(updated, merged)
	}

	patch, err := m.encodePayload(patchFields(edit))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAuditFailed, err)
	}

	err = m.store.Update(func(tx *bolt.Tx) error {
		for _, rec := range updated {
			if err := storage.PutSeriesTx(tx, rec); err != nil {
				return err
			}
			if err := storage.AppendAuditTx(tx, m.auditEvent(types.ActionScheduleBulkUpdate, rec.ID, patch)); err != nil {
				return fmt.Errorf("%w: %v", ErrAuditFailed, err)
			}
		}
		return nil
	})
	if err != nil {
		metrics.WriteFailures.WithLabelValues(failureReason(err)).Inc()
		return 0, m.classify(err)
	}

	metrics.WritesTotal.WithLabelValues(string(types.ActionScheduleBulkUpdate)).Inc()
	metrics.BulkRecordsUpdated.Add(float64(len(updated)))
	m.refreshGauges()
	m.broker.Publish(&events.Event{
		Type:     events.EventScheduleBulkUpdated,
		Schedule: scheduleNumber,
		Message:  fmt.Sprintf("%d records updated", len(updated)),
	})
	m.logger.Info().
		Str("schedule_number", scheduleNumber).
		Int("records", len(updated)).
		Msg("schedule cascade applied")
	return len(updated), nil
}

// patchFields renders the audit payload for a cascade: only the fields
// the edit actually set.
func patchFields(edit types.ScheduleEdit) map[string]any {
	patch := make(map[string]any)
	if edit.ApprovalStatus != nil {
		patch["approval_status"] = *edit.ApprovalStatus
	}
	if edit.ApprovalDate != nil {
		patch["approval_date"] = *edit.ApprovalDate
	}
	if edit.Division != nil {
		patch["division"] = *edit.Division
	}
	if edit.Notes != nil {
		patch["notes"] = *edit.Notes
	}
	if edit.Tags != nil {
		patch["tags"] = *edit.Tags
	}
	return patch
}
