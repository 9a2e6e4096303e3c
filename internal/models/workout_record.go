// Package models provides data model definitions for the LiftLog core.
package models

import "time"

// Collection names persisted by the local store.
const (
	CollectionWorkoutSessions = "workoutSessions"
	CollectionTrainingLogs    = "trainingLogs"
	CollectionSyncQueue       = "syncQueue"
	CollectionSettings        = "settings"
)

// Source identifies which side a record copy came from.
type Source string

const (
	SourceLocal Source = "local"
	SourceCloud Source = "cloud"
)

// SyncStatus represents the remote delivery state of a record.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
)

// DateLayout is the calendar-date format used by WorkoutRecord.Date.
const DateLayout = "2006-01-02"

// Exercise is a single exercise entry within a workout session.
type Exercise struct {
	Name   string  `db:"name" json:"name"`
	Sets   int     `db:"sets" json:"sets"`
	Reps   int     `db:"reps" json:"reps"`
	Weight float64 `db:"weight" json:"weight"`
}

// WorkoutRecord represents a completed training session.
// MuscleGroups and Exercises are never nil on a normalized record;
// empty slices are permitted.
type WorkoutRecord struct {
	ID              string     `db:"id" json:"id"`
	UserID          string     `db:"user_id" json:"user_id"`
	Date            string     `db:"date" json:"date" validate:"required"`
	MuscleGroups    []string   `db:"muscle_groups" json:"muscle_groups"`
	Exercises       []Exercise `db:"exercises" json:"exercises"`
	DurationMinutes int        `db:"duration_minutes" json:"duration_minutes" validate:"gte=0"`
	Notes           string     `db:"notes" json:"notes,omitempty"`
	Source          Source     `db:"source" json:"source"`
	SyncStatus      SyncStatus `db:"sync_status" json:"sync_status"`
	CreatedAt       int64      `db:"created_at" json:"created_at"`
	UpdatedAt       int64      `db:"updated_at" json:"updated_at"`
}

// Collection returns the store collection for WorkoutRecord.
func (WorkoutRecord) Collection() string {
	return CollectionWorkoutSessions
}

// Normalize replaces nil slice fields with empty slices so that
// serialized records always carry arrays, never null.
func (r *WorkoutRecord) Normalize() {
	if r.MuscleGroups == nil {
		r.MuscleGroups = []string{}
	}
	if r.Exercises == nil {
		r.Exercises = []Exercise{}
	}
}

// DateTime parses the calendar date. The second return value is false
// when Date is absent or malformed; callers fall back to CreatedAt.
func (r *WorkoutRecord) DateTime() (time.Time, bool) {
	if r.Date == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SortTime returns the instant used for chronological ordering:
// the calendar date when valid, otherwise CreatedAt.
func (r *WorkoutRecord) SortTime() time.Time {
	if t, ok := r.DateTime(); ok {
		return t
	}
	return time.Unix(r.CreatedAt, 0).UTC()
}

// Clone returns a deep copy of the record.
func (r *WorkoutRecord) Clone() *WorkoutRecord {
	out := *r
	if r.MuscleGroups != nil {
		out.MuscleGroups = append([]string(nil), r.MuscleGroups...)
	}
	if r.Exercises != nil {
		out.Exercises = append([]Exercise(nil), r.Exercises...)
	}
	return &out
}
