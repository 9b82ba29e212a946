package runstore

import (
	"errors"
	"os"
	"path/filepath"
)

const RunSummaryFileName = "run.json"

// RunSummary is the snapshot of the most recent run, kept next to the state
// file for `status`.
type RunSummary struct {
	RunID       string `json:"run_id"`
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name,omitempty"`
	StartedAt   string `json:"started_at"`
	FinishedAt  string `json:"finished_at,omitempty"`
	StateFile   string `json:"state_file"`
	ErrorLog    string `json:"error_log"`
	Total       int    `json:"total"`
	Downloaded  int    `json:"downloaded"`
	Pending     int    `json:"pending"`
	Processed   int    `json:"processed"`
	Completed   int    `json:"completed"`
	Exhausted   int    `json:"exhausted"`
	Skipped     int    `json:"skipped"`
	Attempts    int    `json:"attempts"`
	Aborted     bool   `json:"aborted,omitempty"`
	Error       string `json:"error,omitempty"`
}

func RunSummaryPath(stateDir string) string {
	return filepath.Join(stateDir, RunSummaryFileName)
}

// LoadRunSummary returns ok=false when no run has been recorded yet.
func LoadRunSummary(stateDir string) (RunSummary, bool, error) {
	var s RunSummary
	if err := ReadJSON(RunSummaryPath(stateDir), &s); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return RunSummary{}, false, nil
		}
		return RunSummary{}, false, err
	}
	return s, true, nil
}

func SaveRunSummary(stateDir string, s RunSummary) error {
	return WriteJSON(RunSummaryPath(stateDir), s)
}
