package git

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"

	"github.com/scan-io-git/gitmirror/pkg/shared/files"
)

// State is the classification of a repository path before a sync.
type State string

const (
	StateMissing        State = "missing"
	StatePresentValid   State = "present_valid"
	StatePresentInvalid State = "present_invalid"
)

// MirrorMetadata describes what currently sits at a mirror path.
type MirrorMetadata struct {
	Path       string   `json:"path"`
	State      State    `json:"state"`
	BranchName string   `json:"branch,omitempty"`
	CommitHash string   `json:"commit,omitempty"`
	OriginURL  string   `json:"origin,omitempty"`
	Locks      []string `json:"locks,omitempty"`
	OpenError  string   `json:"open_error,omitempty"`
	repo       *git.Repository
}

// CollectMirrorMetadata classifies repoPath without modifying it. An empty
// directory counts as missing so that an interrupted first clone is retried.
func CollectMirrorMetadata(repoPath string) (*MirrorMetadata, error) {
	md := &MirrorMetadata{Path: filepath.Clean(repoPath)}

	info, err := os.Stat(repoPath)
	if errors.Is(err, os.ErrNotExist) {
		md.State = StateMissing
		return md, nil
	}
	if err != nil {
		return md, fmt.Errorf("failed to stat %q: %w", repoPath, err)
	}
	if !info.IsDir() {
		md.State = StatePresentInvalid
		md.OpenError = "path is not a directory"
		return md, nil
	}

	empty, err := files.IsEmptyDir(repoPath)
	if err != nil {
		return md, fmt.Errorf("failed to read %q: %w", repoPath, err)
	}
	if empty {
		md.State = StateMissing
		return md, nil
	}

	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		md.State = StatePresentInvalid
		md.OpenError = err.Error()
		return md, nil
	}
	md.State = StatePresentValid
	md.repo = repo

	if head, err := repo.Head(); err == nil {
		if head.Name().IsBranch() {
			md.BranchName = head.Name().Short()
		}
		md.CommitHash = head.Hash().String()
	}

	if remote, err := repo.Remote(originRemote); err == nil {
		if cfg := remote.Config(); cfg != nil && len(cfg.URLs) > 0 {
			md.OriginURL = cfg.URLs[0]
		}
	}

	for _, marker := range LockMarkers {
		if _, err := os.Lstat(filepath.Join(repoPath, ".git", marker)); err == nil {
			md.Locks = append(md.Locks, marker)
		}
	}

	return md, nil
}
