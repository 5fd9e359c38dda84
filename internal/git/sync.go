package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/gitmirror/internal/config"
	"github.com/scan-io-git/gitmirror/internal/targets"
	"github.com/scan-io-git/gitmirror/pkg/shared/files"
)

const originRemote = "origin"

// Action is what a sync call did to the mirror.
type Action string

const (
	ActionCloned  Action = "cloned"
	ActionUpdated Action = "updated"
	ActionAborted Action = "aborted"
)

// Result describes one sync call. It is returned alongside errors so callers
// can report how far the call got.
type Result struct {
	URL                   string        `json:"url"`
	LocalDir              string        `json:"local_dir"`
	Branch                string        `json:"branch"`
	Path                  string        `json:"path,omitempty"`
	State                 State         `json:"state,omitempty"`
	Action                Action        `json:"action,omitempty"`
	Head                  string        `json:"head,omitempty"`
	Locks                 []LockOutcome `json:"locks,omitempty"`
	CredentialsConfigured bool          `json:"credentials_configured"`
	Duration              time.Duration `json:"duration"`
}

// syncRun carries the per-call state shared by the clone and update paths.
type syncRun struct {
	target targets.Target
	branch string
	path   string
	auth   transport.AuthMethod
	logger hclog.Logger
	result *Result
}

// Sync converges the mirror of target to origin/<defaultBranch>. A missing
// or empty directory is cloned; an existing repository is fetched and hard
// reset. A directory that holds something other than a repository is left
// untouched and ErrNotRepository is returned.
//
// Sync blocks until all git operations finish. It applies no timeout of its
// own; cancel ctx to abort. Concurrent calls must use distinct local dirs.
func (c *Client) Sync(ctx context.Context, target targets.Target, defaultBranch string) (*Result, error) {
	start := time.Now()
	result := &Result{URL: target.URL, LocalDir: target.LocalDir, Branch: defaultBranch}
	defer func() { result.Duration = time.Since(start) }()

	repoPath, err := c.checkPreconditions(target, defaultBranch)
	if err != nil {
		c.logger.Error("precondition failed", "url", target.URL, "error", err)
		return result, newPhaseError(PhasePrecondition, target.URL, repoPath, err)
	}
	result.Path = repoPath

	run := &syncRun{
		target: target,
		branch: defaultBranch,
		path:   repoPath,
		logger: c.logger.With("url", target.URL, "path", repoPath, "branch", defaultBranch),
		result: result,
	}

	run.auth, err = c.setupAuth(target.URL)
	if err != nil {
		run.logger.Error("failed to set up authentication", "error", err)
		return result, newPhaseError(PhaseAuth, target.URL, repoPath, err)
	}

	md, err := CollectMirrorMetadata(repoPath)
	if err != nil {
		run.logger.Error("failed to inspect repository path", "error", err)
		return result, newPhaseError(PhaseInspect, target.URL, repoPath, err)
	}
	result.State = md.State

	switch md.State {
	case StateMissing:
		err = c.cloneRepository(ctx, run)
	case StatePresentValid:
		err = c.updateRepository(ctx, run, md.repo)
	default:
		result.Action = ActionAborted
		run.logger.Error("directory exists but is not a git repository; remove or repair it manually", "reason", md.OpenError)
		return result, newPhaseError(PhaseInspect, target.URL, repoPath, ErrNotRepository)
	}
	if err != nil {
		return result, err
	}

	run.logger.Info("repository synchronised", "action", result.Action, "head", result.Head, "duration", time.Since(start))
	return result, nil
}

// checkPreconditions validates everything that must hold before the first
// filesystem or network mutation and returns the repository path.
func (c *Client) checkPreconditions(target targets.Target, defaultBranch string) (string, error) {
	if err := c.identity.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPrecondition, err)
	}
	if err := c.identity.RequireToken(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPrecondition, err)
	}
	if strings.TrimSpace(target.URL) == "" {
		return "", fmt.Errorf("%w: target url is empty", ErrPrecondition)
	}
	if strings.TrimSpace(defaultBranch) == "" {
		return "", fmt.Errorf("%w: default branch is empty", ErrPrecondition)
	}
	if strings.ContainsAny(defaultBranch, " ~^:?*[\\") || strings.Contains(defaultBranch, "..") {
		return "", fmt.Errorf("%w: invalid branch name %q", ErrPrecondition, defaultBranch)
	}
	if target.LocalDir == "" {
		return "", fmt.Errorf("%w: target local dir is empty", ErrPrecondition)
	}

	repoPath, err := files.EnsureWithinRoot(c.storageRoot, target.LocalDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPrecondition, err)
	}
	return repoPath, nil
}

// cloneRepository handles a missing mirror: create the directory, clone the
// full remote, then converge on the requested branch.
func (c *Client) cloneRepository(ctx context.Context, run *syncRun) error {
	run.logger.Info("cloning repository")

	if err := os.MkdirAll(run.path, os.ModePerm); err != nil {
		run.logger.Error("failed to create repository directory", "error", err)
		return newPhaseError(PhasePrepare, run.target.URL, run.path, err)
	}
	run.result.Locks = ReconcileLocks(run.path, run.logger)

	repo, err := git.PlainCloneContext(ctx, run.path, false, &git.CloneOptions{
		URL:             run.target.URL,
		RemoteName:      originRemote,
		Auth:            run.auth,
		Progress:        c.progress,
		InsecureSkipTLS: config.GetBoolValue(c.gitConfig, "InsecureTLS", false),
		ProxyOptions:    c.proxyOptions(),
	})
	if err != nil {
		run.logger.Error("error occurred during clone", "error", err)
		return newPhaseError(PhaseClone, run.target.URL, run.path, err)
	}
	run.result.Action = ActionCloned

	if err := c.fetch(ctx, run, repo); err != nil {
		return err
	}
	if err := c.resetHard(run, repo); err != nil {
		return err
	}
	return c.configureCredentials(run, repo)
}

// updateRepository handles an existing mirror: clear stale locks, then fetch
// and hard reset onto the requested branch.
func (c *Client) updateRepository(ctx context.Context, run *syncRun, repo *git.Repository) error {
	run.logger.Info("fetching updates")

	run.result.Locks = ReconcileLocks(run.path, run.logger)

	if err := c.configureCredentials(run, repo); err != nil {
		return err
	}
	if err := c.ensureOrigin(run, repo); err != nil {
		return err
	}
	if err := c.fetch(ctx, run, repo); err != nil {
		return err
	}
	if err := c.resetHard(run, repo); err != nil {
		return err
	}
	run.result.Action = ActionUpdated
	return nil
}

// ensureOrigin points the origin remote at the target URL, creating or
// replacing it when the configured URL differs.
func (c *Client) ensureOrigin(run *syncRun, repo *git.Repository) error {
	cfg := &gitconfig.RemoteConfig{
		Name: originRemote,
		URLs: []string{run.target.URL},
	}

	remote, err := repo.Remote(originRemote)
	switch {
	case err == nil:
		urls := remote.Config().URLs
		if len(urls) == 1 && urls[0] == run.target.URL {
			return nil
		}
		run.logger.Warn("origin URL differs from target, updating", "origin", strings.Join(urls, ","))
		if err := repo.DeleteRemote(originRemote); err != nil {
			run.logger.Error("failed to delete origin remote", "error", err)
			return newPhaseError(PhaseRemote, run.target.URL, run.path, err)
		}
	case errors.Is(err, git.ErrRemoteNotFound):
		run.logger.Warn("origin remote missing, creating")
	default:
		run.logger.Error("failed to read origin remote", "error", err)
		return newPhaseError(PhaseRemote, run.target.URL, run.path, err)
	}

	if _, err := repo.CreateRemote(cfg); err != nil {
		run.logger.Error("failed to create origin remote", "error", err)
		return newPhaseError(PhaseRemote, run.target.URL, run.path, err)
	}
	return nil
}

// fetch updates every remote-tracking branch of origin.
func (c *Client) fetch(ctx context.Context, run *syncRun, repo *git.Repository) error {
	run.logger.Debug("fetching from origin")
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: originRemote,
		RefSpecs: []gitconfig.RefSpec{
			gitconfig.RefSpec(fmt.Sprintf("+refs/heads/*:refs/remotes/%s/*", originRemote)),
		},
		Auth:            run.auth,
		Progress:        c.progress,
		Force:           true,
		InsecureSkipTLS: config.GetBoolValue(c.gitConfig, "InsecureTLS", false),
		ProxyOptions:    c.proxyOptions(),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		run.logger.Error("error occurred during fetch", "error", err)
		return newPhaseError(PhaseFetch, run.target.URL, run.path, err)
	}
	return nil
}

// resetHard moves HEAD, the index and the worktree to origin/<branch>,
// discarding any local divergence.
func (c *Client) resetHard(run *syncRun, repo *git.Repository) error {
	refName := plumbing.NewRemoteReferenceName(originRemote, run.branch)
	ref, err := repo.Reference(refName, true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			err = fmt.Errorf("%w: %s", ErrRemoteBranchNotFound, refName.Short())
		}
		run.logger.Error("failed to resolve remote branch", "ref", refName.String(), "error", err)
		return newPhaseError(PhaseReset, run.target.URL, run.path, err)
	}

	w, err := repo.Worktree()
	if err != nil {
		run.logger.Error("error accessing worktree", "error", err)
		return newPhaseError(PhaseReset, run.target.URL, run.path, err)
	}

	run.logger.Debug("resetting local repository", "commit", ref.Hash().String())
	if err := w.Reset(&git.ResetOptions{
		Commit: ref.Hash(),
		Mode:   git.HardReset,
	}); err != nil {
		run.logger.Error("error occurred during reset", "error", err)
		return newPhaseError(PhaseReset, run.target.URL, run.path, err)
	}

	run.result.Head = ref.Hash().String()
	return nil
}

func (c *Client) configureCredentials(run *syncRun, repo *git.Repository) error {
	configured, err := ConfigureCredentials(repo, run.target, c.identity, run.logger)
	if err != nil {
		run.logger.Error("failed to configure local credentials", "error", err)
		return newPhaseError(PhaseCredential, run.target.URL, run.path, err)
	}
	run.result.CredentialsConfigured = configured
	return nil
}

// Inspect reports the state of the mirror for target without modifying it.
func (c *Client) Inspect(target targets.Target) (*MirrorMetadata, error) {
	repoPath, err := files.EnsureWithinRoot(c.storageRoot, target.LocalDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrecondition, err)
	}
	return CollectMirrorMetadata(repoPath)
}
