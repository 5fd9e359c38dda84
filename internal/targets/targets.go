// Package targets enumerates the repositories to mirror and the branch each
// mirror must follow.
package targets

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/gitsight/go-vcsurl"

	"github.com/scan-io-git/gitmirror/internal/config"
)

// Target describes one remote repository and its local mirror directory.
type Target struct {
	URL      string `yaml:"url" json:"url"`
	LocalDir string `yaml:"local_dir" json:"local_dir"`
	Branch   string `yaml:"branch" json:"branch"`
	// ScopedCredentials enables writing identity and a credential helper into
	// the mirror's local git config.
	ScopedCredentials bool `yaml:"scoped_credentials" json:"scoped_credentials"`
}

// File is the on-disk layout of a targets file.
type File struct {
	DefaultBranch     string   `yaml:"default_branch"`
	ScopedCredentials bool     `yaml:"scoped_credentials"`
	Targets           []Target `yaml:"targets"`
}

// Load reads a YAML targets file and returns normalised targets.
func Load(path string) ([]Target, error) {
	var f File
	if err := config.LoadYAML(path, &f); err != nil {
		return nil, fmt.Errorf("failed to read targets file %q: %w", path, err)
	}
	if len(f.Targets) == 0 {
		return nil, fmt.Errorf("targets file %q does not list any targets", path)
	}

	result := make([]Target, 0, len(f.Targets))
	for i, t := range f.Targets {
		if t.Branch == "" {
			t.Branch = f.DefaultBranch
		}
		t.ScopedCredentials = t.ScopedCredentials || f.ScopedCredentials

		n, err := Normalize(t)
		if err != nil {
			return nil, fmt.Errorf("target #%d in %q: %w", i+1, path, err)
		}
		result = append(result, n)
	}

	if err := checkConflicts(result); err != nil {
		return nil, err
	}
	return result, nil
}

// FromURL builds a single normalised target, as given on the command line.
func FromURL(repoURL, localDir, branch string, scoped bool) (Target, error) {
	return Normalize(Target{
		URL:               repoURL,
		LocalDir:          localDir,
		Branch:            branch,
		ScopedCredentials: scoped,
	})
}

// Normalize validates a target and derives LocalDir from the URL when empty.
func Normalize(t Target) (Target, error) {
	t.URL = strings.TrimSpace(t.URL)
	t.Branch = strings.TrimSpace(t.Branch)

	if t.URL == "" {
		return t, fmt.Errorf("url is required")
	}
	if t.Branch == "" {
		return t, fmt.Errorf("branch is required for %q", t.URL)
	}

	if t.LocalDir == "" {
		dir, err := DeriveLocalDir(t.URL)
		if err != nil {
			return t, err
		}
		t.LocalDir = dir
	}
	t.LocalDir = filepath.Clean(t.LocalDir)
	return t, nil
}

// DeriveLocalDir maps a repository URL to a relative directory of the form
// host/namespace/name.
func DeriveLocalDir(repoURL string) (string, error) {
	if info, err := vcsurl.Parse(repoURL); err == nil && info.Name != "" {
		return filepath.Join(strings.ToLower(string(info.Host)), strings.ToLower(info.Username), strings.ToLower(info.Name)), nil
	}

	host, p, err := splitURL(repoURL)
	if err != nil {
		return "", err
	}

	p = strings.TrimSuffix(strings.Trim(p, "/"), ".git")
	if p == "" || p == "." {
		return "", fmt.Errorf("unable to derive a local directory from %q", repoURL)
	}
	if host == "" {
		// Local remotes only contribute their base name.
		return path.Base(p), nil
	}
	return filepath.Join(strings.ToLower(host), filepath.FromSlash(strings.ToLower(p))), nil
}

// splitURL separates a repository URL into host and path, handling the
// scp-like "user@host:path" form.
func splitURL(repoURL string) (string, string, error) {
	if !strings.Contains(repoURL, "://") {
		if at := strings.Index(repoURL, "@"); at >= 0 {
			if colon := strings.Index(repoURL[at:], ":"); colon > 0 {
				rest := repoURL[at+1:]
				host, p, _ := strings.Cut(rest, ":")
				return host, p, nil
			}
		}
		return "", filepath.ToSlash(repoURL), nil
	}

	u, err := url.Parse(repoURL)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse repository URL %q: %w", repoURL, err)
	}
	if u.Scheme == "file" {
		return "", u.Path, nil
	}
	return u.Hostname(), u.Path, nil
}

// checkConflicts rejects two different remotes that share one local
// directory, and any local directory nested inside another one.
func checkConflicts(list []Target) error {
	for i := range list {
		for j := 0; j < i; j++ {
			a, b := list[j], list[i]
			if a.LocalDir == b.LocalDir {
				if a.URL != b.URL {
					return fmt.Errorf("local_dir %q is used by both %q and %q", a.LocalDir, a.URL, b.URL)
				}
				continue
			}
			if Overlaps(a.LocalDir, b.LocalDir) {
				return fmt.Errorf("local_dir %q of %q and local_dir %q of %q are nested", a.LocalDir, a.URL, b.LocalDir, b.URL)
			}
		}
	}
	return nil
}

// Overlaps reports whether two local directories are the same directory or
// one of them sits inside the other.
func Overlaps(a, b string) bool {
	return within(a, b) || within(b, a)
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(filepath.Clean(parent), filepath.Clean(child))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
