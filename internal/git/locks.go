package git

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
)

// LockStatus is the per-marker result of ReconcileLocks.
type LockStatus string

const (
	LockAbsent  LockStatus = "absent"
	LockRemoved LockStatus = "removed"
	LockFailed  LockStatus = "failed"
)

// LockMarkers are the files under .git whose presence means a previous git
// process was interrupted before releasing them.
var LockMarkers = []string{
	"index.lock",
	"HEAD.lock",
	"config.lock",
	"packed-refs.lock",
}

// LockOutcome records what happened to one lock marker.
type LockOutcome struct {
	Marker string     `json:"marker"`
	Path   string     `json:"path"`
	Status LockStatus `json:"status"`
	Err    error      `json:"-"`
}

// overridden in tests
var (
	statFile   = os.Lstat
	removeFile = os.Remove
)

// ReconcileLocks removes stale lock markers from the .git directory of
// repoPath. Failures are logged and reported in the outcome, never returned:
// the git operations that follow are the real validity check.
func ReconcileLocks(repoPath string, logger hclog.Logger) []LockOutcome {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	gitDir := filepath.Join(repoPath, ".git")
	outcomes := make([]LockOutcome, 0, len(LockMarkers))

	for _, marker := range LockMarkers {
		outcome := LockOutcome{Marker: marker, Path: filepath.Join(gitDir, marker), Status: LockAbsent}

		if _, err := statFile(outcome.Path); err != nil {
			if !os.IsNotExist(err) {
				outcome.Status = LockFailed
				outcome.Err = err
				logger.Warn("failed to inspect lock file", "path", outcome.Path, "error", err)
			}
			outcomes = append(outcomes, outcome)
			continue
		}

		switch err := removeFile(outcome.Path); {
		case err == nil:
			outcome.Status = LockRemoved
			logger.Info("removed stale lock file", "path", outcome.Path)
		case os.IsNotExist(err):
			// released by its owner in the meantime
		default:
			outcome.Status = LockFailed
			outcome.Err = err
			logger.Warn("failed to remove lock file", "path", outcome.Path, "error", err)
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

// CountLocks returns how many outcomes have the given status.
func CountLocks(outcomes []LockOutcome, status LockStatus) int {
	n := 0
	for _, o := range outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}
