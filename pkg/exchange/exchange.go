package exchange

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/events"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/manager"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/metrics"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/types"
)

// FormatVersion tags the exchange document layout. Version 1 documents
// used ils_number for the schedule key; the alias is still accepted on
// import.
const FormatVersion = 2

// Document is the import/export exchange format.
type Document struct {
	ExportedAt time.Time           `json:"exported_at" yaml:"exported_at"`
	Version    int                 `json:"version" yaml:"version"`
	Series     []*importRecord     `json:"series" yaml:"series"`
	Audit      []*types.AuditEvent `json:"audit_events,omitempty" yaml:"audit_events,omitempty"`
}

// importRecord wraps SeriesRecord with the legacy key alias.
type importRecord struct {
	types.SeriesRecord `yaml:",inline"`

	// ILSNumber is the pre-rename name of schedule_number; treated as
	// an alias when the new field is absent.
	ILSNumber string `json:"ils_number,omitempty" yaml:"ils_number,omitempty"`
}

func (r *importRecord) normalize() *types.SeriesRecord {
	rec := r.SeriesRecord.Clone()
	if rec.ScheduleNumber == "" && r.ILSNumber != "" {
		rec.ScheduleNumber = r.ILSNumber
	}
	return rec
}

// Export builds the exchange document from a full snapshot and records a
// system-level export audit event.
func Export(m *manager.Manager) (*Document, error) {
	series, err := m.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	audit, err := m.ListAuditEvents(types.AuditFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to read audit trail: %w", err)
	}

	doc := &Document{
		ExportedAt: time.Now().UTC(),
		Version:    FormatVersion,
		Audit:      audit,
	}
	for _, rec := range series {
		doc.Series = append(doc.Series, &importRecord{SeriesRecord: *rec})
	}

	if err := m.RecordSystemEvent(types.ActionExport, map[string]int{
		"series": len(series),
		"audit":  len(audit),
	}); err != nil {
		return nil, err
	}
	m.Events().Publish(&events.Event{
		Type:    events.EventRecordsExported,
		Message: fmt.Sprintf("%d records exported", len(series)),
	})
	return doc, nil
}

// Import applies the document as a best-effort batch: rows with both
// natural key halves upsert on (schedule_number, item_number), all other
// rows insert. One bad row never aborts the batch; failures land in the
// result's Errors. This is deliberately weaker than the bulk cascade:
// import rows are independent user data, not one edit replicated.
func Import(m *manager.Manager, doc *Document) *types.ImportResult {
	result := &types.ImportResult{}

	for i, row := range doc.Series {
		rec := row.normalize()
		if err := importOne(m, rec, result); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors,
				fmt.Sprintf("row %d (%s): %v", i+1, rec.RecordSeriesTitle, err))
			metrics.ImportRecords.WithLabelValues("skipped").Inc()
		}
	}

	if len(doc.Audit) > 0 {
		if _, err := m.RestoreAuditEvents(doc.Audit); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("audit trail: %v", err))
		}
	}

	if err := m.RecordSystemEvent(types.ActionImport, result); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("import summary: %v", err))
	}
	m.Events().Publish(&events.Event{
		Type:    events.EventRecordsImported,
		Message: fmt.Sprintf("%d created, %d updated, %d skipped", result.Created, result.Updated, result.Skipped),
	})
	return result
}

func importOne(m *manager.Manager, rec *types.SeriesRecord, result *types.ImportResult) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	if rec.HasNaturalKey() {
		existing, err := m.Store().FindByNaturalKey(rec.ScheduleNumber, rec.ItemNumber)
		if err == nil {
			rec.ID = existing.ID
			rec.Version = existing.Version
			if _, err := m.SaveRecord(rec, true); err != nil {
				return err
			}
			result.Updated++
			metrics.ImportRecords.WithLabelValues("updated").Inc()
			return nil
		}
	}

	// No natural key, or no match: always an insert. The incoming id is
	// discarded so a re-imported document cannot clobber an unrelated
	// record that happens to share one.
	rec.ID = ""
	if _, err := m.SaveRecord(rec, false); err != nil {
		return err
	}
	result.Created++
	metrics.ImportRecords.WithLabelValues("created").Inc()
	return nil
}

// WriteFile writes the document as JSON or YAML depending on extension.
func WriteFile(doc *Document, path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(doc)
	} else {
		data, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ReadFile reads a JSON or YAML exchange document.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if isYAML(path) {
		err = yaml.Unmarshal(data, &doc)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return &doc, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
