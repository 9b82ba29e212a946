package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"creator-archiver/internal/model"
	"creator-archiver/internal/runstore"
)

const (
	StateNeverSynced = "never_synced"
	StateComplete    = "complete"
	StatePending     = "pending"
	StateAttention   = "attention"
)

type StatusResult struct {
	StateDir          string               `json:"state_dir"`
	StateFile         string               `json:"state_file"`
	State             string               `json:"state"`
	Total             int                  `json:"total_count"`
	Downloaded        int                  `json:"downloaded_count"`
	Pending           int                  `json:"pending_count"`
	TotalSeconds      int                  `json:"total_seconds"`
	DownloadedSeconds int                  `json:"downloaded_seconds"`
	UnknownDurations  int                  `json:"unknown_duration_count,omitempty"`
	LastRun           *runstore.RunSummary `json:"last_run,omitempty"`
}

// StoreStatus summarizes the store in stateDir. A directory without a state
// file reports StateNeverSynced rather than an error.
func StoreStatus(stateDir string) (StatusResult, error) {
	statePath := filepath.Join(stateDir, runstore.StateFileName)
	res := StatusResult{StateDir: stateDir, StateFile: statePath, State: StateNeverSynced}

	if _, err := os.Stat(statePath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return StatusResult{}, fmt.Errorf("stat state file: %w", err)
		}
	} else {
		entries, err := runstore.LoadEntries(statePath)
		if err != nil {
			return StatusResult{}, err
		}
		res.Downloaded, res.Pending = model.CountDownloaded(entries)
		res.Total = len(entries)
		for _, e := range entries {
			secs, err := ParseDisplayDuration(e.Duration)
			if err != nil {
				res.UnknownDurations++
				continue
			}
			res.TotalSeconds += secs
			if e.Downloaded {
				res.DownloadedSeconds += secs
			}
		}
		res.State = StateComplete
		if res.Pending > 0 {
			res.State = StatePending
		}
	}

	summary, ok, err := runstore.LoadRunSummary(stateDir)
	if err != nil {
		return StatusResult{}, err
	}
	if ok {
		res.LastRun = &summary
		if summary.Exhausted > 0 || summary.Error != "" {
			res.State = StateAttention
		}
	}
	return res, nil
}
