// Package models provides data model definitions for the LiftLog core.
package models

import (
	"encoding/json"
	"fmt"
)

// OperationType represents the kind of pending mutation.
type OperationType string

const (
	OperationCreate OperationType = "CREATE"
	OperationUpdate OperationType = "UPDATE"
	OperationDelete OperationType = "DELETE"
)

// SyncQueueItem represents a mutation not yet confirmed by the remote
// service. ID matches the target record's id, so there is at most one
// queue entry per record.
type SyncQueueItem struct {
	ID            string          `db:"id" json:"id"`
	OperationType OperationType   `db:"operation_type" json:"operation_type"`
	Payload       json.RawMessage `db:"payload" json:"payload"`
	EnqueuedAt    int64           `db:"enqueued_at" json:"enqueued_at"`
	RetryCount    int             `db:"retry_count" json:"retry_count"`
	MaxRetries    int             `db:"max_retries" json:"max_retries"`
	Priority      int             `db:"priority" json:"priority"`
	LastError     string          `db:"last_error" json:"last_error,omitempty"`
}

// Collection returns the store collection for SyncQueueItem.
func (SyncQueueItem) Collection() string {
	return CollectionSyncQueue
}

// Record decodes the payload snapshot taken at enqueue time.
func (i *SyncQueueItem) Record() (*WorkoutRecord, error) {
	if len(i.Payload) == 0 {
		return nil, fmt.Errorf("queue item %s has no payload", i.ID)
	}
	var rec WorkoutRecord
	if err := json.Unmarshal(i.Payload, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode queue payload for %s: %w", i.ID, err)
	}
	return &rec, nil
}

// SetRecord stores a record snapshot as the item payload.
func (i *SyncQueueItem) SetRecord(rec *WorkoutRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode queue payload for %s: %w", i.ID, err)
	}
	i.Payload = data
	return nil
}

// Clone returns a copy of the item with its own payload buffer.
func (i *SyncQueueItem) Clone() *SyncQueueItem {
	out := *i
	if i.Payload != nil {
		out.Payload = append(json.RawMessage(nil), i.Payload...)
	}
	return &out
}
