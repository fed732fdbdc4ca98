package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rec     SeriesRecord
		wantErr string
	}{
		{"minimal valid", SeriesRecord{RecordSeriesTitle: "Training Files"}, ""},
		{"full natural key", SeriesRecord{RecordSeriesTitle: "T", ScheduleNumber: "25-001", ItemNumber: "12a"}, ""},
		{"decimal item", SeriesRecord{RecordSeriesTitle: "T", ItemNumber: "3.1"}, ""},
		{"missing title", SeriesRecord{}, "record_series_title"},
		{"blank title", SeriesRecord{RecordSeriesTitle: "   "}, "record_series_title"},
		{"bad schedule", SeriesRecord{RecordSeriesTitle: "T", ScheduleNumber: "25-1"}, "NN-NNN"},
		{"bad item", SeriesRecord{RecordSeriesTitle: "T", ItemNumber: "x1"}, "item_number"},
		{"bad status", SeriesRecord{RecordSeriesTitle: "T", ApprovalStatus: "signed"}, "approval_status"},
		{"known status", SeriesRecord{RecordSeriesTitle: "T", ApprovalStatus: StatusSuperseded}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	rec := &SeriesRecord{
		RecordSeriesTitle: "Training Files",
		Tags:              []string{"a"},
	}
	cp := rec.Clone()
	cp.Tags[0] = "mutated"
	assert.Equal(t, "a", rec.Tags[0])
}

func TestScheduleEditApplyTo(t *testing.T) {
	status := StatusApproved
	division := "Academy"
	edit := ScheduleEdit{ApprovalStatus: &status, Division: &division}

	rec := &SeriesRecord{
		RecordSeriesTitle: "Training Files",
		ApprovalStatus:    StatusDraft,
		Division:          "Patrol",
		Notes:             "keep",
	}
	out := edit.ApplyTo(rec)

	assert.Equal(t, StatusApproved, out.ApprovalStatus)
	assert.Equal(t, "Academy", out.Division)
	assert.Equal(t, "keep", out.Notes, "unset fields untouched")
	assert.Equal(t, StatusDraft, rec.ApprovalStatus, "original not mutated")

	assert.True(t, ScheduleEdit{}.IsZero())
	assert.False(t, edit.IsZero())
}

func TestHasNaturalKey(t *testing.T) {
	assert.False(t, (&SeriesRecord{ScheduleNumber: "25-001"}).HasNaturalKey())
	assert.False(t, (&SeriesRecord{ItemNumber: "1"}).HasNaturalKey())
	assert.True(t, (&SeriesRecord{ScheduleNumber: "25-001", ItemNumber: "1"}).HasNaturalKey())
}
