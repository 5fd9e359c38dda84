package ci

import (
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Signal is the resolved CI state used to gate credential preconditions.
type Signal struct {
	Kind CIKind
	CI   bool
}

// ResolveFromEnvironment determines the CI signal using the process
// environment. GITMIRROR_CI, when set, overrides detection in both directions.
// It accepts a boolean or a provider name such as "gitlab", which forces CI on.
func ResolveFromEnvironment(log hclog.Logger) Signal {
	return resolveWithLookup(log, os.Getenv)
}

func resolveWithLookup(log hclog.Logger, lookup LookupFunc) Signal {
	if lookup == nil {
		lookup = os.Getenv
	}

	kind := detectCIKindWithLookup(lookup)
	signal := Signal{Kind: kind, CI: kind != CIUnknown}

	if override := strings.TrimSpace(lookup("GITMIRROR_CI")); override != "" {
		if named, err := ParseCIKind(override); err == nil {
			signal.Kind = named
			signal.CI = true
		} else {
			signal.CI = isTruthy(override)
		}
		if log != nil {
			log.Debug("ci signal overridden", "GITMIRROR_CI", override, "ci", signal.CI, "kind", signal.Kind.String())
		}
	}

	if log != nil && signal.CI {
		log.Info("detected CI environment", "kind", signal.Kind.String())
	}
	return signal
}
