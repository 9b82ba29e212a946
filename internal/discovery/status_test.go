package discovery

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-archiver/internal/model"
	"creator-archiver/internal/runstore"
)

func TestStoreStatus_NeverSynced(t *testing.T) {
	res, err := StoreStatus(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, StateNeverSynced, res.State)
	assert.Nil(t, res.LastRun)
}

func TestStoreStatus_CountsAndDurations(t *testing.T) {
	dir := t.TempDir()
	entries := []model.VideoEntry{
		{ID: "BV1a", URL: model.VideoURL("BV1a"), Duration: "1m0s", Downloaded: true, FilePaths: []string{"/x/a.mp4"}},
		{ID: "BV1b", URL: model.VideoURL("BV1b"), Duration: "30s"},
		{ID: "BV1c", URL: model.VideoURL("BV1c"), Duration: "??"},
	}
	require.NoError(t, runstore.SaveEntries(filepath.Join(dir, runstore.StateFileName), entries))

	res, err := StoreStatus(dir)
	require.NoError(t, err)
	assert.Equal(t, StatePending, res.State)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Downloaded)
	assert.Equal(t, 2, res.Pending)
	assert.Equal(t, 90, res.TotalSeconds)
	assert.Equal(t, 60, res.DownloadedSeconds)
	assert.Equal(t, 1, res.UnknownDurations)
}

func TestStoreStatus_LastRunNeedsAttention(t *testing.T) {
	dir := t.TempDir()
	entries := []model.VideoEntry{{ID: "BV1a", URL: model.VideoURL("BV1a"), Duration: "5s", Downloaded: true}}
	require.NoError(t, runstore.SaveEntries(filepath.Join(dir, runstore.StateFileName), entries))
	require.NoError(t, runstore.SaveRunSummary(dir, runstore.RunSummary{RunID: "r1", Exhausted: 1}))

	res, err := StoreStatus(dir)
	require.NoError(t, err)
	assert.Equal(t, StateAttention, res.State)
	require.NotNil(t, res.LastRun)
	assert.Equal(t, "r1", res.LastRun.RunID)
}
