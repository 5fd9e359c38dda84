package git

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/hashicorp/go-hclog"

	crssh "golang.org/x/crypto/ssh"

	"github.com/scan-io-git/gitmirror/internal/config"
	"github.com/scan-io-git/gitmirror/internal/logger"
)

const defaultTokenUsername = "x-access-token"

// Client synchronises mirrors under a storage root. It holds no per-target
// state, so one Client may serve concurrent Sync calls for distinct paths.
type Client struct {
	logger      hclog.Logger
	storageRoot string
	identity    *config.Identity
	gitConfig   config.GitClient
	progress    io.Writer
}

// Authenticator defines an interface for different authentication methods.
type Authenticator interface {
	SetupAuth(endpoint *transport.Endpoint, logger hclog.Logger) (transport.AuthMethod, error)
	ValidateConfig() error
}

// TokenAuthenticator provides HTTP basic authentication with AUTH_TOKEN.
type TokenAuthenticator struct {
	Username string
	Token    string
}

// SSHKeyAuthenticator provides SSH key-based authentication.
type SSHKeyAuthenticator struct {
	KeyPath  string
	Password string
}

// SSHAgentAuthenticator provides SSH agent-based authentication.
type SSHAgentAuthenticator struct{}

// AnonymousAuthenticator is used for local remotes and tokenless http remotes.
type AnonymousAuthenticator struct{}

// SetupAuth configures HTTP basic authentication.
func (a *TokenAuthenticator) SetupAuth(endpoint *transport.Endpoint, logger hclog.Logger) (transport.AuthMethod, error) {
	logger.Debug("setting up HTTP token authentication", "host", endpoint.Host)
	return &http.BasicAuth{
		Username: a.Username,
		Password: a.Token,
	}, nil
}

// ValidateConfig validates the configuration for TokenAuthenticator.
func (a *TokenAuthenticator) ValidateConfig() error {
	if a.Username == "" {
		return fmt.Errorf("username is required for token authentication")
	}
	if a.Token == "" {
		return fmt.Errorf("token is required for token authentication")
	}
	return nil
}

// SetupAuth configures SSH key authentication.
func (a *SSHKeyAuthenticator) SetupAuth(endpoint *transport.Endpoint, logger hclog.Logger) (transport.AuthMethod, error) {
	logger.Debug("setting up SSH key authentication", "host", endpoint.Host)

	auth, err := ssh.NewPublicKeysFromFile(sshUser(endpoint), a.KeyPath, a.Password)
	if err != nil {
		logger.Error("failed to set up SSH key authentication", "error", err)
		return nil, err
	}
	return auth, nil
}

// ValidateConfig checks that the key file parses, with the passphrase when one is needed.
func (a *SSHKeyAuthenticator) ValidateConfig() error {
	keyData, err := os.ReadFile(a.KeyPath)
	if err != nil {
		return fmt.Errorf("failed to read SSH key file: %w", err)
	}

	_, err = crssh.ParsePrivateKey(keyData)
	if err == nil {
		return nil
	}

	var missing *crssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return fmt.Errorf("invalid SSH key format: %w", err)
	}
	if a.Password == "" {
		return fmt.Errorf("SSH key %q is encrypted and ssh_key_password is empty", a.KeyPath)
	}
	if _, err := crssh.ParsePrivateKeyWithPassphrase(keyData, []byte(a.Password)); err != nil {
		return fmt.Errorf("invalid SSH key format or incorrect passphrase: %w", err)
	}
	return nil
}

// SetupAuth configures SSH agent authentication.
func (a *SSHAgentAuthenticator) SetupAuth(endpoint *transport.Endpoint, logger hclog.Logger) (transport.AuthMethod, error) {
	logger.Debug("setting up SSH agent authentication", "host", endpoint.Host)

	auth, err := ssh.NewSSHAgentAuth(sshUser(endpoint))
	if err != nil {
		logger.Error("failed to set up SSH agent authentication", "error", err)
		return nil, err
	}
	return auth, nil
}

// ValidateConfig validates the configuration for SSHAgentAuthenticator.
func (a *SSHAgentAuthenticator) ValidateConfig() error {
	return nil
}

// SetupAuth returns no authentication method.
func (a *AnonymousAuthenticator) SetupAuth(*transport.Endpoint, hclog.Logger) (transport.AuthMethod, error) {
	return nil, nil
}

// ValidateConfig validates the configuration for AnonymousAuthenticator.
func (a *AnonymousAuthenticator) ValidateConfig() error {
	return nil
}

func sshUser(endpoint *transport.Endpoint) string {
	if endpoint.User != "" {
		return endpoint.User
	}
	return "git"
}

// getAuthenticator picks the authentication method from the remote protocol.
// The token is only ever sent to http(s) remotes.
func (c *Client) getAuthenticator(endpoint *transport.Endpoint) Authenticator {
	switch endpoint.Protocol {
	case "http", "https":
		if c.identity.AuthToken == "" {
			return &AnonymousAuthenticator{}
		}
		return &TokenAuthenticator{
			Username: config.SetThen(c.gitConfig.TokenUsername, defaultTokenUsername),
			Token:    c.identity.AuthToken,
		}
	case "ssh":
		if c.gitConfig.SSHKey != "" {
			return &SSHKeyAuthenticator{KeyPath: c.gitConfig.SSHKey, Password: c.gitConfig.SSHKeyPassword}
		}
		return &SSHAgentAuthenticator{}
	default:
		return &AnonymousAuthenticator{}
	}
}

// setupAuth resolves the authentication method for repoURL.
func (c *Client) setupAuth(repoURL string) (transport.AuthMethod, error) {
	endpoint, err := transport.NewEndpoint(repoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse repository URL: %w", err)
	}

	authenticator := c.getAuthenticator(endpoint)
	if err := authenticator.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("invalid authentication configuration: %w", err)
	}

	auth, err := authenticator.SetupAuth(endpoint, c.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up git authentication: %w", err)
	}
	return auth, nil
}

// proxyOptions converts the configured proxy for go-git transports.
func (c *Client) proxyOptions() transport.ProxyOptions {
	return transport.ProxyOptions{
		URL:      config.ProxyURL(c.gitConfig.Proxy),
		Username: c.gitConfig.Proxy.Username,
		Password: c.gitConfig.Proxy.Password,
	}
}

// New initializes a new Git Client. identity must already be validated at
// startup; it is checked again on every Sync call.
func New(log hclog.Logger, storageRoot string, identity *config.Identity, gitConfig config.GitClient) (*Client, error) {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	if storageRoot == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if identity == nil {
		return nil, fmt.Errorf("identity is required")
	}

	return &Client{
		logger:      log,
		storageRoot: storageRoot,
		identity:    identity,
		gitConfig:   gitConfig,
		progress:    logger.GetLoggerOutput(log),
	}, nil
}
