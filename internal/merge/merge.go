// Package merge reconciles local and remote record sets into a single
// de-duplicated, time-ordered view. The merge is whole-record and
// id-based: when both sides carry the same id the local copy is kept,
// because the local store is the write path of record. No field-level
// merging is attempted; the engine guarantees single-writer-per-record
// semantics only.
package merge

import (
	"sort"

	"github.com/liftsync/liftlog/internal/models"
)

// Merge combines local and remote records. Remote records whose id is
// not present locally are tagged Source=cloud and appended; the
// result is ordered descending by calendar date, falling back to
// CreatedAt when the date is absent or invalid. The inputs are not
// mutated.
func Merge(local, remote []models.WorkoutRecord) []models.WorkoutRecord {
	localIDs := make(map[string]struct{}, len(local))
	merged := make([]models.WorkoutRecord, 0, len(local)+len(remote))

	for _, rec := range local {
		copy := *rec.Clone()
		copy.Normalize()
		merged = append(merged, copy)
		localIDs[rec.ID] = struct{}{}
	}

	for _, rec := range remote {
		if _, dup := localIDs[rec.ID]; dup {
			// local wins on id collision
			continue
		}
		copy := *rec.Clone()
		copy.Normalize()
		copy.Source = models.SourceCloud
		merged = append(merged, copy)
	}

	sort.SliceStable(merged, func(a, b int) bool {
		ta, tb := merged[a].SortTime(), merged[b].SortTime()
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		if merged[a].CreatedAt != merged[b].CreatedAt {
			return merged[a].CreatedAt > merged[b].CreatedAt
		}
		return merged[a].ID < merged[b].ID
	})

	return merged
}
