package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/scan-io-git/gitmirror/internal/git"
	"github.com/scan-io-git/gitmirror/internal/metrics"
	"github.com/scan-io-git/gitmirror/internal/targets"
)

// Target statuses in a report.
const (
	StatusOK     = "OK"
	StatusFailed = "FAILED"
)

// Syncer is the part of git.Client the fetcher depends on.
type Syncer interface {
	Sync(ctx context.Context, target targets.Target, defaultBranch string) (*git.Result, error)
}

// Fetcher runs sync calls for a list of targets.
type Fetcher struct {
	syncer  Syncer
	jobs    int
	timeout time.Duration
	metrics *metrics.Recorder
	logger  hclog.Logger
}

// TargetReport is the outcome of one target in a run.
type TargetReport struct {
	*git.Result
	Status string    `json:"status"`
	Phase  git.Phase `json:"phase,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// Report summarises a run.
type Report struct {
	RunID     string         `json:"run_id"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Targets   []TargetReport `json:"targets"`
}

// New creates a Fetcher. timeout bounds each sync call; zero means none.
func New(syncer Syncer, jobs int, timeout time.Duration, recorder *metrics.Recorder, logger hclog.Logger) *Fetcher {
	if jobs <= 0 {
		jobs = 1
	}
	if recorder == nil {
		recorder = metrics.New()
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Fetcher{
		syncer:  syncer,
		jobs:    jobs,
		timeout: timeout,
		metrics: recorder,
		logger:  logger,
	}
}

// groupByLocalDir keeps targets whose mirror paths are equal or nested in
// one ordered group, so that no two sync calls ever touch the same tree at once.
func groupByLocalDir(list []targets.Target) [][]int {
	var groups [][]int
	for i, t := range list {
		merged := -1
		for g := 0; g < len(groups); g++ {
			if !overlapsGroup(list, groups[g], t.LocalDir) {
				continue
			}
			if merged < 0 {
				merged = g
				continue
			}
			groups[merged] = append(groups[merged], groups[g]...)
			groups = append(groups[:g], groups[g+1:]...)
			g--
		}
		if merged < 0 {
			groups = append(groups, []int{i})
			continue
		}
		sort.Ints(groups[merged])
		groups[merged] = append(groups[merged], i)
	}
	return groups
}

func overlapsGroup(list []targets.Target, group []int, dir string) bool {
	for _, i := range group {
		if targets.Overlaps(list[i].LocalDir, dir) {
			return true
		}
	}
	return false
}

// FetchRepos syncs every target. A failing target never stops the others;
// all failures are joined into the returned error. The report is always
// complete, in the order of list.
func (f *Fetcher) FetchRepos(ctx context.Context, runID string, list []targets.Target) (*Report, error) {
	report := &Report{
		RunID:     runID,
		StartedAt: time.Now(),
		Total:     len(list),
		Targets:   make([]TargetReport, len(list)),
	}

	groups := groupByLocalDir(list)
	f.logger.Info("sync starting", "total", len(list), "groups", len(groups), "jobs", f.jobs)

	var (
		mu   sync.Mutex
		errs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.jobs)

	for _, group := range groups {
		group := group
		g.Go(func() error {
			for _, i := range group {
				tr, err := f.syncOne(gctx, list[i])
				report.Targets[i] = tr
				if err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}

	for _, tr := range report.Targets {
		if tr.Status == StatusOK {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	report.Duration = time.Since(report.StartedAt)

	f.logger.Info("sync finished", "succeeded", report.Succeeded, "failed", report.Failed, "duration", report.Duration)
	return report, errors.Join(errs...)
}

func (f *Fetcher) syncOne(ctx context.Context, target targets.Target) (TargetReport, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := f.syncer.Sync(ctx, target, target.Branch)
	if result == nil {
		result = &git.Result{URL: target.URL, LocalDir: target.LocalDir, Branch: target.Branch}
	}
	tr := TargetReport{Result: result, Status: StatusOK}

	for _, lock := range result.Locks {
		switch lock.Status {
		case git.LockRemoved:
			f.metrics.LockRemoved(lock.Marker)
		case git.LockFailed:
			f.metrics.LockFailed(lock.Marker)
		}
	}

	if err != nil {
		tr.Status = StatusFailed
		tr.Phase = git.PhaseOf(err)
		tr.Error = err.Error()
		f.metrics.SyncFailedAt(target.LocalDir, string(tr.Phase), time.Since(start))
		return tr, fmt.Errorf("failed to sync %q: %w", target.URL, err)
	}

	f.metrics.SyncSucceeded(target.LocalDir, string(result.Action), time.Since(start))
	return tr, nil
}
