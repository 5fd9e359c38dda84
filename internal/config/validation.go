package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/scan-io-git/gitmirror/pkg/shared/files"
)

const (
	defaultStorageFolder = "storage"
	defaultJobs          = 1
	maxJobs              = 64
)

// ValidateConfig checks if the global configurations have valid values and
// fills in defaults that depend on the environment.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("YAML global config: configuration object is nil")
	}
	if err := ValidateMirrorConfig(&cfg.Mirror); err != nil {
		return fmt.Errorf("YAML global config: mirror directive is invalid: %w", err)
	}
	if err := ValidateGitConfig(&cfg.GitClient); err != nil {
		return fmt.Errorf("YAML global config: git_client directive is invalid: %w", err)
	}
	return nil
}

// ValidateMirrorConfig resolves the storage root and checks the job count.
func ValidateMirrorConfig(mirror *Mirror) error {
	if mirror == nil {
		return fmt.Errorf("mirror configuration is nil")
	}
	if err := updateStorageRoot(mirror); err != nil {
		return fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if mirror.Jobs < 0 || mirror.Jobs > maxJobs {
		return fmt.Errorf("jobs must be between 0 and %d: %d", maxJobs, mirror.Jobs)
	}
	mirror.Jobs = SetThen(mirror.Jobs, defaultJobs)
	return nil
}

// ValidateGitConfig checks if the Git configurations have valid values.
func ValidateGitConfig(gitConfig *GitClient) error {
	if gitConfig == nil {
		return fmt.Errorf("git configuration is nil")
	}

	if err := validateDuration(gitConfig.Timeout, "timeout", 6*time.Hour); err != nil {
		return err
	}

	if gitConfig.SSHKey != "" {
		expanded, err := files.ExpandPath(gitConfig.SSHKey)
		if err != nil {
			return fmt.Errorf("failed to expand ssh_key path %q: %w", gitConfig.SSHKey, err)
		}
		if err := files.ValidatePath(expanded); err != nil {
			return fmt.Errorf("invalid ssh_key: %w", err)
		}
		gitConfig.SSHKey = expanded
	}

	if err := validateProxy(&gitConfig.Proxy); err != nil {
		return err
	}
	return nil
}

// validateDuration checks that a time.Duration is valid and within a specified maximum duration.
func validateDuration(d time.Duration, name string, max time.Duration) error {
	if d < 0 {
		return fmt.Errorf("invalid duration for %s: %v cannot be negative", name, d)
	}
	if d > max {
		return fmt.Errorf("%s duration is too long: %v exceeds maximum of %v", name, d, max)
	}
	return nil
}

// validateProxy checks if the given Proxy settings are valid.
func validateProxy(proxy *Proxy) error {
	if proxy == nil {
		return fmt.Errorf("proxy configuration is nil")
	}

	// If host or port is not set, skip further validation
	if proxy.Host == "" || proxy.Port == 0 {
		return nil
	}

	if err := validateHost(&proxy.Host); err != nil {
		return err
	}

	if err := validatePort(proxy.Port); err != nil {
		return err
	}

	return nil
}

// validateHost checks if the host part of the proxy configuration is valid.
// It ensures the host includes a scheme; adds "http" if missing.
func validateHost(host *string) error {
	if host == nil {
		return fmt.Errorf("host string pointer is nil")
	}

	if !strings.Contains(*host, "://") {
		*host = "http://" + *host
	}
	*host = strings.TrimRight(*host, "/")

	u, err := url.Parse(*host)
	if err != nil {
		return fmt.Errorf("invalid host URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid host URL %q: empty host", *host)
	}

	return nil
}

// validatePort checks if the port part of the proxy configuration is valid.
func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ProxyURL returns the proxy address as scheme://host:port, or an empty
// string when no proxy is configured. Host carries its scheme after validation.
func ProxyURL(proxy Proxy) string {
	if proxy.Host == "" || proxy.Port == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", proxy.Host, proxy.Port)
}

// updateStorageRoot resolves the storage root from GITMIRROR_STORAGE_ROOT, the
// YAML value, or a folder next to the running executable, in that order.
func updateStorageRoot(mirror *Mirror) error {
	if envValue := os.Getenv("GITMIRROR_STORAGE_ROOT"); envValue != "" {
		mirror.StorageRoot = envValue
	} else if mirror.StorageRoot == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("unable to locate executable: %w", err)
		}
		mirror.StorageRoot = filepath.Join(filepath.Dir(exe), defaultStorageFolder)
	}

	expanded, err := files.ExpandPath(mirror.StorageRoot)
	if err != nil {
		return fmt.Errorf("failed to expand storage root %q: %w", mirror.StorageRoot, err)
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return fmt.Errorf("failed to resolve storage root %q: %w", expanded, err)
	}
	mirror.StorageRoot = abs

	if err := files.CreateFolderIfNotExists(abs); err != nil {
		return fmt.Errorf("failed to create storage root %q: %w", abs, err)
	}
	return nil
}
