// Package models provides data model definitions for the LiftLog core.
package models

// Setting is a key/value entry in the settings collection. The sync
// engine keeps its bookkeeping here (last drain summary, degraded
// storage flag) so the UI can surface it after a restart.
type Setting struct {
	Key       string `db:"key" json:"key"`
	Value     string `db:"value" json:"value"`
	UpdatedAt int64  `db:"updated_at" json:"updated_at"`
}

// Collection returns the store collection for Setting.
func (Setting) Collection() string {
	return CollectionSettings
}

// Well-known setting keys.
const (
	SettingLastDrainSummary = "sync.last_drain_summary"
	SettingDegradedStorage  = "storage.degraded"
)
