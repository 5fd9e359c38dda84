package git

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeGitDir(t *testing.T, markers ...string) string {
	t.Helper()

	repo := t.TempDir()
	gitDir := filepath.Join(repo, ".git")
	require.NoError(t, os.MkdirAll(gitDir, 0o755))
	for _, m := range markers {
		require.NoError(t, os.WriteFile(filepath.Join(gitDir, m), nil, 0o644))
	}
	return repo
}

func statusByMarker(outcomes []LockOutcome) map[string]LockStatus {
	m := make(map[string]LockStatus, len(outcomes))
	for _, o := range outcomes {
		m[o.Marker] = o.Status
	}
	return m
}

func TestReconcileLocks(t *testing.T) {
	tests := []struct {
		name    string
		present []string
		want    map[string]LockStatus
	}{
		{
			name: "no markers",
			want: map[string]LockStatus{
				"index.lock":       LockAbsent,
				"HEAD.lock":        LockAbsent,
				"config.lock":      LockAbsent,
				"packed-refs.lock": LockAbsent,
			},
		},
		{
			name:    "index lock only",
			present: []string{"index.lock"},
			want: map[string]LockStatus{
				"index.lock":       LockRemoved,
				"HEAD.lock":        LockAbsent,
				"config.lock":      LockAbsent,
				"packed-refs.lock": LockAbsent,
			},
		},
		{
			name:    "all markers",
			present: LockMarkers,
			want: map[string]LockStatus{
				"index.lock":       LockRemoved,
				"HEAD.lock":        LockRemoved,
				"config.lock":      LockRemoved,
				"packed-refs.lock": LockRemoved,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := makeGitDir(t, tt.present...)

			outcomes := ReconcileLocks(repo, hclog.NewNullLogger())
			require.Len(t, outcomes, len(LockMarkers))
			assert.Equal(t, tt.want, statusByMarker(outcomes))

			for _, m := range LockMarkers {
				assert.NoFileExists(t, filepath.Join(repo, ".git", m))
			}
		})
	}
}

func TestReconcileLocksMissingGitDir(t *testing.T) {
	outcomes := ReconcileLocks(filepath.Join(t.TempDir(), "absent"), nil)
	assert.Equal(t, len(LockMarkers), CountLocks(outcomes, LockAbsent))
}

func TestReconcileLocksRemovalDenied(t *testing.T) {
	repo := makeGitDir(t, "index.lock", "HEAD.lock")

	denied := errors.New("permission denied")
	removeFile = func(path string) error {
		if filepath.Base(path) == "index.lock" {
			return denied
		}
		return os.Remove(path)
	}
	t.Cleanup(func() { removeFile = os.Remove })

	outcomes := ReconcileLocks(repo, hclog.NewNullLogger())

	got := statusByMarker(outcomes)
	assert.Equal(t, LockFailed, got["index.lock"])
	assert.Equal(t, LockRemoved, got["HEAD.lock"])
	assert.Equal(t, 1, CountLocks(outcomes, LockFailed))

	for _, o := range outcomes {
		if o.Marker == "index.lock" {
			assert.ErrorIs(t, o.Err, denied)
		} else {
			assert.NoError(t, o.Err)
		}
	}
	assert.FileExists(t, filepath.Join(repo, ".git", "index.lock"))
}

func TestReconcileLocksReleasedConcurrently(t *testing.T) {
	repo := makeGitDir(t, "HEAD.lock")

	removeFile = func(path string) error {
		_ = os.Remove(path)
		return &os.PathError{Op: "remove", Path: path, Err: os.ErrNotExist}
	}
	t.Cleanup(func() { removeFile = os.Remove })

	outcomes := ReconcileLocks(repo, hclog.NewNullLogger())
	assert.Equal(t, LockAbsent, statusByMarker(outcomes)["HEAD.lock"])
}

func TestReconcileLocksStatFailure(t *testing.T) {
	repo := makeGitDir(t)

	statFile = func(string) (os.FileInfo, error) { return nil, os.ErrPermission }
	t.Cleanup(func() { statFile = os.Lstat })

	outcomes := ReconcileLocks(repo, hclog.NewNullLogger())
	assert.Equal(t, len(LockMarkers), CountLocks(outcomes, LockFailed))
}
