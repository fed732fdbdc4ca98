package types

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// SeriesRecord is the merged entity representing one row of a retention
// schedule: record-series and schedule-level metadata flattened together.
type SeriesRecord struct {
	ID                string         `json:"id" yaml:"id"`
	ScheduleNumber    string         `json:"schedule_number,omitempty" yaml:"schedule_number,omitempty"`
	ItemNumber        string         `json:"item_number,omitempty" yaml:"item_number,omitempty"`
	RecordSeriesTitle string         `json:"record_series_title" yaml:"record_series_title"`
	Division          string         `json:"division,omitempty" yaml:"division,omitempty"`
	ApprovalStatus    ApprovalStatus `json:"approval_status,omitempty" yaml:"approval_status,omitempty"`
	ApprovalDate      string         `json:"approval_date,omitempty" yaml:"approval_date,omitempty"`

	// Year-precision coverage range. DatesCoveredEnd may hold the
	// sentinel "present" meaning the series is still accumulating.
	DatesCoveredStart string `json:"dates_covered_start,omitempty" yaml:"dates_covered_start,omitempty"`
	DatesCoveredEnd   string `json:"dates_covered_end,omitempty" yaml:"dates_covered_end,omitempty"`

	Tags          []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	MediaTypes    []string `json:"media_types,omitempty" yaml:"media_types,omitempty"`
	StatuteRefs   []string `json:"omb_or_statute_refs,omitempty" yaml:"omb_or_statute_refs,omitempty"`
	RelatedSeries []string `json:"related_series,omitempty" yaml:"related_series,omitempty"`

	RetentionText string   `json:"retention_text,omitempty" yaml:"retention_text,omitempty"`
	Notes         string   `json:"notes,omitempty" yaml:"notes,omitempty"`
	Extras        UIExtras `json:"ui_extras,omitempty" yaml:"ui_extras,omitempty"`

	// Set by the write coordinator, never by callers.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
	Version   int64     `json:"version" yaml:"version"`
}

// UIExtras holds display-oriented fields that have churned across schema
// versions. They are enumerated here rather than kept as a blind map so
// typos surface at compile time.
type UIExtras struct {
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Contacts    string `json:"contacts,omitempty" yaml:"contacts,omitempty"`
	Volume      string `json:"volume,omitempty" yaml:"volume,omitempty"`
	Location    string `json:"location,omitempty" yaml:"location,omitempty"`
}

// IsZero reports whether no extra field is set.
func (e UIExtras) IsZero() bool {
	return e == UIExtras{}
}

// ApprovalStatus represents where a schedule sits in the approval workflow.
type ApprovalStatus string

const (
	StatusDraft      ApprovalStatus = "draft"
	StatusPending    ApprovalStatus = "pending"
	StatusApproved   ApprovalStatus = "approved"
	StatusSuperseded ApprovalStatus = "superseded"
)

// PresentSentinel is the coverage-end value meaning "still accumulating".
const PresentSentinel = "present"

var (
	scheduleNumberRe = regexp.MustCompile(`^\d{2}-\d{3}$`)
	itemNumberRe     = regexp.MustCompile(`^\d+([A-Za-z]|\.\d+)?$`)
)

// Validate checks the structural invariants a record must satisfy before
// it may be written.
func (r *SeriesRecord) Validate() error {
	if strings.TrimSpace(r.RecordSeriesTitle) == "" {
		return fmt.Errorf("record_series_title is required")
	}
	if r.ScheduleNumber != "" && !scheduleNumberRe.MatchString(r.ScheduleNumber) {
		return fmt.Errorf("schedule_number %q is not NN-NNN", r.ScheduleNumber)
	}
	if r.ItemNumber != "" && !itemNumberRe.MatchString(r.ItemNumber) {
		return fmt.Errorf("item_number %q is not a valid item number", r.ItemNumber)
	}
	switch r.ApprovalStatus {
	case "", StatusDraft, StatusPending, StatusApproved, StatusSuperseded:
	default:
		return fmt.Errorf("unknown approval_status %q", r.ApprovalStatus)
	}
	return nil
}

// HasNaturalKey reports whether both halves of the natural key are set.
func (r *SeriesRecord) HasNaturalKey() bool {
	return r.ScheduleNumber != "" && r.ItemNumber != ""
}

// Clone returns a deep copy safe for independent mutation.
func (r *SeriesRecord) Clone() *SeriesRecord {
	cp := *r
	cp.Tags = append([]string(nil), r.Tags...)
	cp.MediaTypes = append([]string(nil), r.MediaTypes...)
	cp.StatuteRefs = append([]string(nil), r.StatuteRefs...)
	cp.RelatedSeries = append([]string(nil), r.RelatedSeries...)
	return &cp
}

// AuditAction identifies what a recorded mutation did.
type AuditAction string

const (
	ActionCreate             AuditAction = "create"
	ActionUpdate             AuditAction = "update"
	ActionDelete             AuditAction = "delete"
	ActionScheduleBulkUpdate AuditAction = "schedule_bulk_update"
	ActionImport             AuditAction = "import"
	ActionExport             AuditAction = "export"
	ActionScheduleUnassigned AuditAction = "schedule_unassigned"
)

// Audit entity kinds.
const (
	EntitySeries = "series"
	EntitySystem = "system"
)

// AuditEvent is an append-only record of one mutation. Events are never
// updated or deleted, even when the record they describe is.
type AuditEvent struct {
	ID       string          `json:"id" yaml:"id"`
	Entity   string          `json:"entity" yaml:"entity"`
	EntityID string          `json:"entity_id,omitempty" yaml:"entity_id,omitempty"`
	Action   AuditAction     `json:"action" yaml:"action"`
	Actor    string          `json:"actor,omitempty" yaml:"actor,omitempty"`
	At       time.Time       `json:"at" yaml:"at"`
	Payload  json.RawMessage `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// AuditFilter constrains ListAuditEvents. Zero-valued fields do not
// filter.
type AuditFilter struct {
	Entity   string
	EntityID string
	Action   AuditAction
	From     time.Time
	To       time.Time
	Limit    int
}

// ScheduleEdit carries the schedule-level fields a bulk cascade may
// overwrite. Nil pointers leave the field untouched on every record.
type ScheduleEdit struct {
	ApprovalStatus *ApprovalStatus
	ApprovalDate   *string
	Division       *string
	Notes          *string
	Tags           *[]string
}

// IsZero reports whether the edit would change nothing.
func (e ScheduleEdit) IsZero() bool {
	return e.ApprovalStatus == nil && e.ApprovalDate == nil &&
		e.Division == nil && e.Notes == nil && e.Tags == nil
}

// ApplyTo overlays the set fields onto a copy of rec and returns it.
func (e ScheduleEdit) ApplyTo(rec *SeriesRecord) *SeriesRecord {
	out := rec.Clone()
	if e.ApprovalStatus != nil {
		out.ApprovalStatus = *e.ApprovalStatus
	}
	if e.ApprovalDate != nil {
		out.ApprovalDate = *e.ApprovalDate
	}
	if e.Division != nil {
		out.Division = *e.Division
	}
	if e.Notes != nil {
		out.Notes = *e.Notes
	}
	if e.Tags != nil {
		out.Tags = append([]string(nil), (*e.Tags)...)
	}
	return out
}

// ImportResult aggregates a best-effort import batch. One bad row never
// aborts the batch; it lands in Errors instead.
type ImportResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// StoreStats summarizes the open store.
type StoreStats struct {
	SeriesCount   int `json:"series_count"`
	AuditCount    int `json:"audit_count"`
	SchemaVersion int `json:"schema_version"`
}
