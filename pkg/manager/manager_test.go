package manager

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/query"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/storage"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, _, err := Open(&Config{DataDir: t.TempDir(), Actor: "tester"})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func mustSave(t *testing.T, m *Manager, rec *types.SeriesRecord) *types.SeriesRecord {
	t.Helper()
	out, err := m.SaveRecord(rec, false)
	require.NoError(t, err)
	return out
}

func TestSaveRecordCreate(t *testing.T) {
	m := newTestManager(t)

	out := mustSave(t, m, &types.SeriesRecord{
		ScheduleNumber:    "25-001",
		ItemNumber:        "1",
		RecordSeriesTitle: "Training Files",
	})

	assert.NotEmpty(t, out.ID)
	assert.Equal(t, int64(1), out.Version)
	assert.False(t, out.CreatedAt.IsZero())
	assert.Equal(t, out.CreatedAt, out.UpdatedAt)

	evs, err := m.ListAuditEvents(types.AuditFilter{EntityID: out.ID})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, types.ActionCreate, evs[0].Action)
	assert.Equal(t, "tester", evs[0].Actor)
	assert.NotEmpty(t, evs[0].Payload, "audit event carries the record snapshot")
}

func TestSaveRecordValidation(t *testing.T) {
	m := newTestManager(t)

	_, err := m.SaveRecord(&types.SeriesRecord{}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record_series_title")

	_, err = m.SaveRecord(&types.SeriesRecord{
		RecordSeriesTitle: "Bad Schedule",
		ScheduleNumber:    "25-1",
	}, false)
	require.Error(t, err)

	n, err := m.Count()
	require.NoError(t, err)
	assert.Zero(t, n, "invalid records must never reach the store")
}

func TestSaveRecordUpdateIncrementsVersion(t *testing.T) {
	m := newTestManager(t)

	out := mustSave(t, m, &types.SeriesRecord{RecordSeriesTitle: "Evidence Logs"})

	out.Notes = "reviewed"
	updated, err := m.SaveRecord(out, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, out.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(out.UpdatedAt) || updated.UpdatedAt.Equal(out.UpdatedAt))

	got, err := m.GetRecord(out.ID)
	require.NoError(t, err)
	assert.Equal(t, "reviewed", got.Notes)
}

func TestSaveRecordStaleVersionConflict(t *testing.T) {
	m := newTestManager(t)

	out := mustSave(t, m, &types.SeriesRecord{RecordSeriesTitle: "Evidence Logs"})

	// First writer wins.
	first := out.Clone()
	first.Notes = "first"
	_, err := m.SaveRecord(first, true)
	require.NoError(t, err)

	// Second writer still holds version 1.
	stale := out.Clone()
	stale.Notes = "second"
	_, err = m.SaveRecord(stale, true)
	assert.ErrorIs(t, err, ErrConflict)

	got, err := m.GetRecord(out.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Notes, "stale write must not land")
	assert.Equal(t, int64(2), got.Version)
}

func TestSaveRecordNaturalKeyConflict(t *testing.T) {
	m := newTestManager(t)

	mustSave(t, m, &types.SeriesRecord{
		ScheduleNumber: "25-001", ItemNumber: "1", RecordSeriesTitle: "First",
	})

	_, err := m.SaveRecord(&types.SeriesRecord{
		ScheduleNumber: "25-001", ItemNumber: "1", RecordSeriesTitle: "Second",
	}, false)
	assert.ErrorIs(t, err, ErrConflict)

	n, err := m.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSaveRecordAuditFailureRollsBack(t *testing.T) {
	m := newTestManager(t)
	m.encodePayload = func(any) ([]byte, error) {
		return nil, fmt.Errorf("encode exploded")
	}

	_, err := m.SaveRecord(&types.SeriesRecord{
		ScheduleNumber: "25-001", ItemNumber: "1", RecordSeriesTitle: "Training Files",
	}, false)
	assert.ErrorIs(t, err, ErrAuditFailed)

	// The record write committed inside the same transaction must be gone.
	n, err := m.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	evs, err := m.ListAuditEvents(types.AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestGetRecordNotFound(t *testing.T) {
	m := newTestManager(t)
	_, err := m.GetRecord("no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRecord(t *testing.T) {
	m := newTestManager(t)

	out := mustSave(t, m, &types.SeriesRecord{
		ScheduleNumber: "25-001", ItemNumber: "1", RecordSeriesTitle: "Training Files",
	})

	require.NoError(t, m.DeleteRecord(out.ID))

	_, err := m.GetRecord(out.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The trail outlives the record.
	evs, err := m.ListAuditEvents(types.AuditFilter{EntityID: out.ID})
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, types.ActionDelete, evs[0].Action)

	assert.ErrorIs(t, m.DeleteRecord(out.ID), ErrNotFound)
}

func TestApplyScheduleEditCascade(t *testing.T) {
	m := newTestManager(t)

	a := mustSave(t, m, &types.SeriesRecord{
		ScheduleNumber: "25-001", ItemNumber: "1",
		RecordSeriesTitle: "Training Files", ApprovalStatus: types.StatusDraft,
	})
	b := mustSave(t, m, &types.SeriesRecord{
		ScheduleNumber: "25-001", ItemNumber: "2",
		RecordSeriesTitle: "Firearms Qualification", ApprovalStatus: types.StatusDraft,
	})
	other := mustSave(t, m, &types.SeriesRecord{
		ScheduleNumber: "25-002", ItemNumber: "1",
		RecordSeriesTitle: "Evidence Logs", ApprovalStatus: types.StatusDraft,
	})

	status := types.StatusApproved
	date := "2025-06-01"
	n, err := m.ApplyScheduleEdit("25-001", types.ScheduleEdit{
		ApprovalStatus: &status,
		ApprovalDate:   &date,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []string{a.ID, b.ID} {
		got, err := m.GetRecord(id)
		require.NoError(t, err)
		assert.Equal(t, types.StatusApproved, got.ApprovalStatus)
		assert.Equal(t, "2025-06-01", got.ApprovalDate)
		assert.Equal(t, int64(2), got.Version)
	}

	untouched, err := m.GetRecord(other.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusDraft, untouched.ApprovalStatus)
	assert.Equal(t, int64(1), untouched.Version)

	evs, err := m.ListAuditEvents(types.AuditFilter{Action: types.ActionScheduleBulkUpdate})
	require.NoError(t, err)
	assert.Len(t, evs, 2, "one bulk audit event per record touched")
}

func TestApplyScheduleEditNoMatches(t *testing.T) {
	m := newTestManager(t)

	status := types.StatusApproved
	n, err := m.ApplyScheduleEdit("25-099", types.ScheduleEdit{ApprovalStatus: &status})
	require.NoError(t, err)
	assert.Zero(t, n)

	evs, err := m.ListAuditEvents(types.AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestApplyScheduleEditEmptyEdit(t *testing.T) {
	m := newTestManager(t)

	mustSave(t, m, &types.SeriesRecord{
		ScheduleNumber: "25-001", ItemNumber: "1", RecordSeriesTitle: "Training Files",
	})

	n, err := m.ApplyScheduleEdit("25-001", types.ScheduleEdit{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestApplyScheduleEditAbortsWholeCascade(t *testing.T) {
	m := newTestManager(t)

	a := mustSave(t, m, &types.SeriesRecord{
		ScheduleNumber: "25-001", ItemNumber: "1",
		RecordSeriesTitle: "Training Files", ApprovalStatus: types.StatusDraft,
	})
	b := mustSave(t, m, &types.SeriesRecord{
		ScheduleNumber: "25-001", ItemNumber: "2",
		RecordSeriesTitle: "Firearms Qualification", ApprovalStatus: types.StatusDraft,
	})

	// Sabotage the audit trail so the append inside the cascade fails
	// after record writes have already happened in the transaction.
	require.NoError(t, m.store.Update(func(tx *bolt.Tx) error {
		return tx.DeleteBucket(storage.BucketAudit)
	}))

	status := types.StatusApproved
	_, err := m.ApplyScheduleEdit("25-001", types.ScheduleEdit{ApprovalStatus: &status})
	assert.ErrorIs(t, err, ErrAuditFailed)

	for _, id := range []string{a.ID, b.ID} {
		got, err := m.GetRecord(id)
		require.NoError(t, err)
		assert.Equal(t, types.StatusDraft, got.ApprovalStatus, "partial cascade leaked")
		assert.Equal(t, int64(1), got.Version)
	}
}

func TestSearchThroughIndex(t *testing.T) {
	m := newTestManager(t)

	mustSave(t, m, &types.SeriesRecord{
		ScheduleNumber: "25-001", ItemNumber: "1", RecordSeriesTitle: "Training Files",
	})
	mustSave(t, m, &types.SeriesRecord{
		ScheduleNumber: "25-002", ItemNumber: "1", RecordSeriesTitle: "Evidence Logs",
	})

	results, err := m.Search(query.Criteria{ScheduleNumber: "25-001"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Training Files", results[0].RecordSeriesTitle)

	results, err = m.Search(query.Criteria{SearchText: "evidence"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Evidence Logs", results[0].RecordSeriesTitle)
}

func TestRecordSystemEvent(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.RecordSystemEvent(types.ActionExport, map[string]int{"series": 3}))

	evs, err := m.ListAuditEvents(types.AuditFilter{Entity: types.EntitySystem})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, types.ActionExport, evs[0].Action)
}

func TestRestoreAuditEventsSkipsKnownIDs(t *testing.T) {
	m := newTestManager(t)

	out := mustSave(t, m, &types.SeriesRecord{RecordSeriesTitle: "Evidence Logs"})
	existing, err := m.ListAuditEvents(types.AuditFilter{EntityID: out.ID})
	require.NoError(t, err)
	require.Len(t, existing, 1)

	incoming := []*types.AuditEvent{
		existing[0],
		{Entity: types.EntitySeries, EntityID: out.ID, Action: types.ActionUpdate, Actor: "elsewhere"},
	}
	added, err := m.RestoreAuditEvents(incoming)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	evs, err := m.ListAuditEvents(types.AuditFilter{EntityID: out.ID})
	require.NoError(t, err)
	assert.Len(t, evs, 2)
}

func TestStats(t *testing.T) {
	m := newTestManager(t)

	mustSave(t, m, &types.SeriesRecord{RecordSeriesTitle: "Evidence Logs"})

	stats, err := m.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SeriesCount)
	assert.Equal(t, 1, stats.AuditCount)
	assert.Equal(t, 4, stats.SchemaVersion)
}
