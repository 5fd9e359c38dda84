package fetcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/gitmirror/internal/git"
	"github.com/scan-io-git/gitmirror/internal/metrics"
	"github.com/scan-io-git/gitmirror/internal/targets"
)

type fakeSyncer struct {
	mu       sync.Mutex
	active   map[string]int
	overlaps int
	calls    []string
	fail     map[string]error
	locks    []git.LockOutcome
	delay    time.Duration
	deadline bool
}

func (s *fakeSyncer) Sync(ctx context.Context, target targets.Target, branch string) (*git.Result, error) {
	s.mu.Lock()
	if s.active == nil {
		s.active = make(map[string]int)
	}
	s.active[target.LocalDir]++
	if s.active[target.LocalDir] > 1 {
		s.overlaps++
	}
	s.calls = append(s.calls, target.URL)
	s.mu.Unlock()

	time.Sleep(s.delay)

	s.mu.Lock()
	s.active[target.LocalDir]--
	if _, ok := ctx.Deadline(); ok {
		s.deadline = true
	}
	s.mu.Unlock()

	result := &git.Result{URL: target.URL, LocalDir: target.LocalDir, Branch: branch, Locks: s.locks}
	if err, ok := s.fail[target.URL]; ok {
		return result, err
	}
	result.Action = git.ActionUpdated
	return result, nil
}

func TestGroupByLocalDir(t *testing.T) {
	list := []targets.Target{
		{URL: "a", LocalDir: "x"},
		{URL: "b", LocalDir: "y"},
		{URL: "c", LocalDir: "x/"},
		{URL: "d", LocalDir: "z"},
	}
	assert.Equal(t, [][]int{{0, 2}, {1}, {3}}, groupByLocalDir(list))
}

func TestGroupByLocalDirMergesNestedPaths(t *testing.T) {
	list := []targets.Target{
		{URL: "a", LocalDir: "org/app/sub"},
		{URL: "b", LocalDir: "org/other"},
		{URL: "c", LocalDir: "org/app/tools"},
		{URL: "d", LocalDir: "org/application"},
		{URL: "e", LocalDir: "org/app"},
	}
	assert.Equal(t, [][]int{{0, 2, 4}, {1}, {3}}, groupByLocalDir(list))
}

func TestFetchReposSerialisesSharedPaths(t *testing.T) {
	syncer := &fakeSyncer{delay: 20 * time.Millisecond}
	f := New(syncer, 4, 0, nil, hclog.NewNullLogger())

	list := []targets.Target{
		{URL: "https://example.com/a.git", LocalDir: "shared", Branch: "main"},
		{URL: "https://example.com/b.git", LocalDir: "shared", Branch: "main"},
		{URL: "https://example.com/c.git", LocalDir: "other", Branch: "main"},
	}

	report, err := f.FetchRepos(context.Background(), "run-1", list)
	require.NoError(t, err)
	assert.Equal(t, 0, syncer.overlaps)
	assert.Len(t, syncer.calls, 3)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, "run-1", report.RunID)
	assert.False(t, syncer.deadline)
}

func TestFetchReposIsolatesFailures(t *testing.T) {
	failure := &git.PhaseError{Phase: git.PhaseFetch, URL: "https://example.com/b.git", Err: errors.New("boom")}
	syncer := &fakeSyncer{
		fail:  map[string]error{"https://example.com/b.git": failure},
		locks: []git.LockOutcome{{Marker: "index.lock", Status: git.LockRemoved}, {Marker: "HEAD.lock", Status: git.LockFailed}},
	}
	recorder := metrics.New()
	f := New(syncer, 2, time.Minute, recorder, hclog.NewNullLogger())

	list := []targets.Target{
		{URL: "https://example.com/a.git", LocalDir: "a", Branch: "main"},
		{URL: "https://example.com/b.git", LocalDir: "b", Branch: "main"},
		{URL: "https://example.com/c.git", LocalDir: "c", Branch: "main"},
	}

	report, err := f.FetchRepos(context.Background(), "run-2", list)
	require.Error(t, err)
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, git.PhaseFetch, git.PhaseOf(err))

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Targets, 3)
	assert.Equal(t, StatusOK, report.Targets[0].Status)
	assert.Equal(t, StatusFailed, report.Targets[1].Status)
	assert.Equal(t, git.PhaseFetch, report.Targets[1].Phase)
	assert.Contains(t, report.Targets[1].Error, "boom")
	assert.Equal(t, StatusOK, report.Targets[2].Status)
	assert.True(t, syncer.deadline)

	assert.Equal(t, 2.0, testutil.ToFloat64(recorder.SyncCount.WithLabelValues("updated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.SyncFailed.WithLabelValues("fetch")))
	assert.Equal(t, 3.0, testutil.ToFloat64(recorder.LocksRemoved.WithLabelValues("index.lock")))
	assert.Equal(t, 3.0, testutil.ToFloat64(recorder.LocksFailed.WithLabelValues("HEAD.lock")))
}

func TestFetchReposEmpty(t *testing.T) {
	f := New(&fakeSyncer{}, 0, 0, nil, nil)
	report, err := f.FetchRepos(context.Background(), "run-3", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total)
	assert.Empty(t, report.Targets)
}
