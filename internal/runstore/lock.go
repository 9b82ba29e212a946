package runstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const (
	storeLockDirName   = ".archiver.lock"
	storeLockOwnerFile = "owner.json"

	// orphanLockAge is how long a lock directory without a readable owner
	// file is honoured before it is treated as left over from a crash.
	orphanLockAge = time.Minute
)

// StoreLock gives one orchestrator exclusive ownership of a state directory.
type StoreLock struct {
	lockDir string
}

type storeLockOwner struct {
	PID       int    `json:"pid"`
	RunID     string `json:"run_id,omitempty"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

// AcquireStoreLock takes the lock on stateDir. A lock left behind by a
// process on this host that no longer exists is taken over.
func AcquireStoreLock(stateDir, runID string) (StoreLock, error) {
	target := strings.TrimSpace(stateDir)
	if target == "" {
		return StoreLock{}, fmt.Errorf("state directory is required")
	}
	if err := Mkdir(target); err != nil {
		return StoreLock{}, err
	}

	lockDir := filepath.Join(target, storeLockDirName)
	err := os.Mkdir(lockDir, 0o755)
	if err != nil && os.IsExist(err) {
		owner, held := inspectStoreLock(lockDir)
		if held {
			if owner.PID > 0 {
				return StoreLock{}, fmt.Errorf(
					"state directory is locked: %s (pid=%d run_id=%s created_at=%s host=%s)",
					target, owner.PID, owner.RunID, owner.CreatedAt, owner.Hostname,
				)
			}
			return StoreLock{}, fmt.Errorf("state directory is locked: %s", target)
		}
		if rmErr := os.RemoveAll(lockDir); rmErr != nil {
			return StoreLock{}, fmt.Errorf("remove stale store lock %s: %w", lockDir, rmErr)
		}
		err = os.Mkdir(lockDir, 0o755)
		if err != nil && os.IsExist(err) {
			return StoreLock{}, fmt.Errorf("state directory is locked: %s", target)
		}
	}
	if err != nil {
		return StoreLock{}, fmt.Errorf("acquire store lock for %s: %w", target, err)
	}

	owner := storeLockOwner{
		PID:       os.Getpid(),
		RunID:     runID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	ownerPath := filepath.Join(lockDir, storeLockOwnerFile)
	if err := WriteJSON(ownerPath, owner); err != nil {
		_ = os.RemoveAll(lockDir)
		return StoreLock{}, fmt.Errorf("write store lock owner for %s: %w", target, err)
	}

	return StoreLock{lockDir: lockDir}, nil
}

// inspectStoreLock reports whether an existing lock directory is still held.
// Owners on another host are always honoured.
func inspectStoreLock(lockDir string) (storeLockOwner, bool) {
	var owner storeLockOwner
	if err := ReadJSON(filepath.Join(lockDir, storeLockOwnerFile), &owner); err != nil || owner.PID <= 0 {
		info, statErr := os.Stat(lockDir)
		if statErr != nil {
			return storeLockOwner{}, !os.IsNotExist(statErr)
		}
		return storeLockOwner{}, time.Since(info.ModTime()) < orphanLockAge
	}
	if owner.Hostname != hostnameOrUnknown() {
		return owner, true
	}
	return owner, processAlive(owner.PID)
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func (l StoreLock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.lockDir, storeLockOwnerFile))
	if err := os.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release store lock %s: %w", l.lockDir, err)
	}
	return nil
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
