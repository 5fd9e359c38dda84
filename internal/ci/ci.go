// Package ci provides helpers for discovering whether the process runs inside
// a continuous-integration environment.
package ci

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// CIKind represents the type of CI.
type CIKind int

const (
	// CIUnknown indicates the CI provider could not be identified.
	CIUnknown CIKind = iota
	// CIGitHub identifies GitHub Actions environments.
	CIGitHub
	// CIGitLab identifies GitLab CI environments.
	CIGitLab
	// CIBitbucket identifies Bitbucket Pipelines environments.
	CIBitbucket
	// CIGeneric identifies an unrecognised provider that still exports CI=true.
	CIGeneric
)

// LookupFunc fetches environment variables and defaults to os.Getenv.
type LookupFunc func(string) string

// String returns the human-readable string representation of a CIKind.
func (c CIKind) String() string {
	switch c {
	case CIGitHub:
		return "github"
	case CIGitLab:
		return "gitlab"
	case CIBitbucket:
		return "bitbucket"
	case CIGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// ParseCIKind converts a string identifier into a CIKind value.
func ParseCIKind(raw string) (CIKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "github":
		return CIGitHub, nil
	case "gitlab":
		return CIGitLab, nil
	case "bitbucket":
		return CIBitbucket, nil
	case "generic":
		return CIGeneric, nil
	default:
		return CIUnknown, fmt.Errorf("unsupported ci kind %q", raw)
	}
}

// detectCIKindWithLookup infers the CI provider from well-known environment variables.
func detectCIKindWithLookup(lookup LookupFunc) CIKind {
	if lookup == nil {
		lookup = os.Getenv
	}

	if isTruthy(lookup("GITHUB_ACTIONS")) {
		return CIGitHub
	}
	if isTruthy(lookup("GITLAB_CI")) || lookup("CI_PROJECT_PATH") != "" {
		return CIGitLab
	}
	if lookup("BITBUCKET_BUILD_NUMBER") != "" || lookup("BITBUCKET_REPO_SLUG") != "" {
		return CIBitbucket
	}
	if isTruthy(lookup("CI")) {
		return CIGeneric
	}

	return CIUnknown
}

// isTruthy reports whether a boolean-like environment value is set. Values
// that do not parse as booleans count as set when non-empty, so CI=yes works.
func isTruthy(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}
