package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/sethvargo/go-envconfig"

	"github.com/scan-io-git/gitmirror/internal/ci"
)

// Identity carries the process-wide credentials read once at startup and
// passed by reference into every sync call.
type Identity struct {
	Actor     string `env:"ACTOR,required"`
	Email     string `env:"EMAIL,required"`
	AuthToken string `env:"AUTH_TOKEN"`

	// CI reports whether a recognised CI environment signal is present.
	CI bool
	// CIKind names the detected provider, for logging.
	CIKind ci.CIKind
}

// LoadIdentity processes the identity variables through lookuper. A nil
// lookuper reads the process environment.
func LoadIdentity(ctx context.Context, lookuper envconfig.Lookuper, signal ci.Signal) (*Identity, error) {
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}

	var id Identity
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &id,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process identity environment: %w", err)
	}

	id.CI = signal.CI
	id.CIKind = signal.Kind

	if err := id.Validate(); err != nil {
		return nil, err
	}
	return &id, nil
}

// Validate checks the values that must always be present.
func (i *Identity) Validate() error {
	if i == nil {
		return fmt.Errorf("identity is nil")
	}
	if strings.TrimSpace(i.Actor) == "" {
		return fmt.Errorf("ACTOR environment variable must be set")
	}
	if strings.TrimSpace(i.Email) == "" {
		return fmt.Errorf("EMAIL environment variable must be set")
	}
	return nil
}

// RequireToken reports a missing AUTH_TOKEN when running under CI.
func (i *Identity) RequireToken() error {
	if i.CI && i.AuthToken == "" {
		return fmt.Errorf("AUTH_TOKEN is not set in %s CI environment", i.CIKind)
	}
	return nil
}

// String masks the token so an Identity is safe to log.
func (i Identity) String() string {
	token := "<empty>"
	if i.AuthToken != "" {
		token = "*******"
	}
	return fmt.Sprintf("actor=%s email=%s token=%s ci=%t", i.Actor, i.Email, token, i.CI)
}
