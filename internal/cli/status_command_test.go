package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"creator-archiver/internal/discovery"
	"creator-archiver/internal/runstore"
)

func TestRenderStatus(t *testing.T) {
	res := statusResult{
		AccountID:   "42",
		AccountName: "Tester",
		StatusResult: discovery.StatusResult{
			StateFile:         "/out/Tester/video_urls.csv",
			State:             discovery.StateAttention,
			Total:             3,
			Downloaded:        2,
			Pending:           1,
			TotalSeconds:      3661,
			DownloadedSeconds: 61,
			LastRun: &runstore.RunSummary{
				RunID:      "run-1",
				FinishedAt: "2026-01-02T03:04:05Z",
				Completed:  2,
				Exhausted:  1,
				Attempts:   7,
				ErrorLog:   "/out/Tester/download_errors.log",
			},
		},
	}

	out := renderStatus(res)
	assert.Contains(t, out, "Tester (42)")
	assert.Contains(t, out, "attention")
	assert.Contains(t, out, "2/3 downloaded")
	assert.Contains(t, out, "1m1s of 1h1m1s")
	assert.Contains(t, out, "completed=2 exhausted=1 skipped=0 attempts=7")
	assert.Contains(t, out, "/out/Tester/download_errors.log")
}

func TestRenderStatus_NeverSynced(t *testing.T) {
	out := renderStatus(statusResult{
		AccountID:    "42",
		AccountName:  "42",
		StatusResult: discovery.StatusResult{State: discovery.StateNeverSynced, StateFile: "/out/42/video_urls.csv"},
	})
	assert.Contains(t, out, "never_synced")
	assert.NotContains(t, out, "downloaded")
}
