package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/gitmirror/internal/config"
)

// initOrigin creates a non-bare repository on branch main with one commit.
func initOrigin(t *testing.T) (string, *git.Repository) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	require.NoError(t, err)

	commitFile(t, repo, dir, "README.md", "hello\n")
	return dir, repo
}

// commitFile writes name with content into the worktree of repo and commits it.
func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) plumbing.Hash {
	t.Helper()

	wt, err := repo.Worktree()
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err = wt.Add(name)
	require.NoError(t, err)

	hash, err := wt.Commit("update "+name, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err)
	return hash
}

// commitRemoval deletes name from the worktree of repo and commits the removal.
func commitRemoval(t *testing.T, repo *git.Repository, name string) plumbing.Hash {
	t.Helper()

	wt, err := repo.Worktree()
	require.NoError(t, err)

	_, err = wt.Remove(name)
	require.NoError(t, err)

	hash, err := wt.Commit("remove "+name, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err)
	return hash
}

// createBranch points a new branch of repo at the current HEAD.
func createBranch(t *testing.T, repo *git.Repository, name string) {
	t.Helper()

	head, err := repo.Head()
	require.NoError(t, err)
	require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), head.Hash())))
}

func testIdentity() *config.Identity {
	return &config.Identity{Actor: "mirror-bot", Email: "mirror-bot@example.com"}
}

func newTestClient(t *testing.T, identity *config.Identity) (*Client, string) {
	t.Helper()

	root := t.TempDir()
	c, err := New(hclog.NewNullLogger(), root, identity, config.GitClient{})
	require.NoError(t, err)
	return c, root
}

// isolateHome points HOME and XDG_CONFIG_HOME at an empty directory.
func isolateHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	return home
}
