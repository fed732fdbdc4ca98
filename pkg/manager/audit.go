package manager

import (
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/storage"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/types"
)

// RecordSystemEvent appends a system-level audit event (import/export
// summaries and the like). Not paired with a record write.
func (m *Manager) RecordSystemEvent(action types.AuditAction, payload any) error {
	data, err := m.encodePayload(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuditFailed, err)
	}
	err = m.store.Update(func(tx *bolt.Tx) error {
		return storage.AppendAuditTx(tx, &types.AuditEvent{
			Entity:  types.EntitySystem,
			Action:  action,
			Actor:   m.actor,
			At:      m.now(),
			Payload: data,
		})
	})
	if err != nil {
		return m.classify(err)
	}
	m.refreshGauges()
	return nil
}

// RestoreAuditEvents inserts imported audit events that are not already
// present. The trail is append-only, so events with a known id are left
// untouched rather than overwritten.
func (m *Manager) RestoreAuditEvents(evs []*types.AuditEvent) (int, error) {
	var added int
	err := m.store.Update(func(tx *bolt.Tx) error {
		audit := tx.Bucket(storage.BucketAudit)
		for _, ev := range evs {
			if ev.ID != "" && audit.Get([]byte(ev.ID)) != nil {
				continue
			}
			cp := *ev
			if err := storage.AppendAuditTx(tx, &cp); err != nil {
				return err
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, m.classify(err)
	}
	m.refreshGauges()
	return added, nil
}
