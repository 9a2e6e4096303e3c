// Package models provides data model definitions for the LiftLog core.
package models

import "time"

// TrainingLogEntry is a compact audit line written alongside each
// workout session mutation. It feeds the training history view and
// survives restarts with the record store.
type TrainingLogEntry struct {
	ID        string `db:"id" json:"id"`
	RecordID  string `db:"record_id" json:"record_id"`
	Operation string `db:"operation" json:"operation"` // save, delete
	LoggedAt  int64  `db:"logged_at" json:"logged_at"`
}

// Collection returns the store collection for TrainingLogEntry.
func (TrainingLogEntry) Collection() string {
	return CollectionTrainingLogs
}

// Time returns LoggedAt as time.Time.
func (e *TrainingLogEntry) Time() time.Time {
	return time.Unix(e.LoggedAt, 0)
}
