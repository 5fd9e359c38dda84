package git

import (
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/gitmirror/internal/config"
	"github.com/scan-io-git/gitmirror/internal/targets"
)

const credentialHelper = "store"

// ConfigureCredentials writes user.name, user.email and credential.helper
// into the repository's local .git/config when the target opts in. Global
// and system configuration are never touched. It reports whether anything
// was written.
func ConfigureCredentials(repo *git.Repository, target targets.Target, identity *config.Identity, logger hclog.Logger) (bool, error) {
	if !target.ScopedCredentials {
		logger.Trace("scoped credentials disabled for target, skipping", "url", target.URL)
		return false, nil
	}
	if identity == nil {
		return false, fmt.Errorf("identity is required to configure credentials")
	}

	cfg, err := repo.Config()
	if err != nil {
		return false, fmt.Errorf("failed to read local git config: %w", err)
	}

	cfg.User.Name = identity.Actor
	cfg.User.Email = identity.Email
	cfg.Raw.Section("credential").SetOption("helper", credentialHelper)

	if err := repo.SetConfig(cfg); err != nil {
		return false, fmt.Errorf("failed to write local git config: %w", err)
	}

	logger.Debug("configured local git credentials", "url", target.URL, "user", identity.Actor)
	return true, nil
}
