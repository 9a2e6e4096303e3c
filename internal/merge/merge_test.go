package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftsync/liftlog/internal/models"
)

func record(id, date string, createdAt int64) models.WorkoutRecord {
	return models.WorkoutRecord{
		ID:           id,
		Date:         date,
		MuscleGroups: []string{"back"},
		Exercises:    []models.Exercise{},
		Source:       models.SourceLocal,
		SyncStatus:   models.SyncStatusSynced,
		CreatedAt:    createdAt,
	}
}

func TestMergeDeduplicatesByID(t *testing.T) {
	local := []models.WorkoutRecord{record("a", "2024-01-02", 1)}
	remote := []models.WorkoutRecord{record("a", "2024-01-02", 1), record("b", "2024-01-01", 1)}

	merged := Merge(local, remote)

	require.Len(t, merged, 2)
	seen := map[string]int{}
	for _, rec := range merged {
		seen[rec.ID]++
	}
	assert.Equal(t, 1, seen["a"])
	assert.Equal(t, 1, seen["b"])
}

func TestMergeLocalWinsOnCollision(t *testing.T) {
	localCopy := record("a", "2024-01-02", 1)
	localCopy.Notes = "local edit"
	localCopy.SyncStatus = models.SyncStatusPending

	remoteCopy := record("a", "2024-01-02", 1)
	remoteCopy.Notes = "remote edit"

	merged := Merge([]models.WorkoutRecord{localCopy}, []models.WorkoutRecord{remoteCopy})

	require.Len(t, merged, 1)
	// Whole-record resolution: the local copy is kept, including its
	// pending sync status. A newer remote edit would be discarded
	// here; the engine guarantees single-writer-per-record only.
	assert.Equal(t, "local edit", merged[0].Notes)
	assert.Equal(t, models.SyncStatusPending, merged[0].SyncStatus)
	assert.Equal(t, models.SourceLocal, merged[0].Source)
}

func TestMergeTagsRemoteOnlyAsCloud(t *testing.T) {
	merged := Merge(nil, []models.WorkoutRecord{record("b", "2024-01-01", 1)})

	require.Len(t, merged, 1)
	assert.Equal(t, models.SourceCloud, merged[0].Source)
}

func TestMergeOrdersNewestFirst(t *testing.T) {
	local := []models.WorkoutRecord{
		record("old", "2023-12-01", 1),
		record("new", "2024-02-01", 1),
	}
	remote := []models.WorkoutRecord{record("mid", "2024-01-15", 1)}

	merged := Merge(local, remote)

	require.Len(t, merged, 3)
	assert.Equal(t, "new", merged[0].ID)
	assert.Equal(t, "mid", merged[1].ID)
	assert.Equal(t, "old", merged[2].ID)
}

func TestMergeFallsBackToCreatedAt(t *testing.T) {
	dated := record("dated", "2024-01-10", 100)
	undated := record("undated", "", 1704931200) // 2024-01-11 UTC
	invalid := record("invalid", "not-a-date", 1704499200)

	merged := Merge([]models.WorkoutRecord{dated, undated, invalid}, nil)

	require.Len(t, merged, 3)
	assert.Equal(t, "undated", merged[0].ID)
	assert.Equal(t, "dated", merged[1].ID)
	assert.Equal(t, "invalid", merged[2].ID)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	remote := []models.WorkoutRecord{record("b", "2024-01-01", 1)}
	remote[0].Source = models.SourceLocal

	Merge(nil, remote)

	assert.Equal(t, models.SourceLocal, remote[0].Source)
}

func TestMergeNormalizesNilSlices(t *testing.T) {
	rec := models.WorkoutRecord{ID: "a", Date: "2024-01-01"}

	merged := Merge(nil, []models.WorkoutRecord{rec})

	require.Len(t, merged, 1)
	assert.NotNil(t, merged[0].MuscleGroups)
	assert.NotNil(t, merged[0].Exercises)
}

func TestMergeEmptyInputs(t *testing.T) {
	assert.Empty(t, Merge(nil, nil))
}
