package yutto

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrAborted is returned when the caller's context ends the attempt.
	ErrAborted = errors.New("download aborted")
	// ErrMissingSentinel is returned for multi-part downloads that exited
	// cleanly without printing the merge-complete marker.
	ErrMissingSentinel = errors.New("download finished without completion marker")
	// ErrNoOutput is returned when a clean exit left no media files behind.
	ErrNoOutput = errors.New("download produced no media files")
)

type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("download timed out after %s", e.Timeout)
}

type ProcessError struct {
	ExitCode int
	Output   string
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("download tool exited with code %d", e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + lastLine(out)
	}
	return msg
}

func lastLine(s string) string {
	if i := strings.LastIndexAny(s, "\r\n"); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
