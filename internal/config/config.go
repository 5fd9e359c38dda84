package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// Config is the YAML configuration of gitmirror.
type Config struct {
	Logger    Logger    `yaml:"logger"`
	Mirror    Mirror    `yaml:"mirror"`
	GitClient GitClient `yaml:"git_client"`
}

// Logger holds logging settings.
type Logger struct {
	Level           string `yaml:"level"`
	DisableTime     *bool  `yaml:"disable_time"`
	JSONFormat      *bool  `yaml:"json_format"`
	IncludeLocation *bool  `yaml:"include_location"`
}

// Mirror holds storage layout and scheduling settings.
type Mirror struct {
	StorageRoot string `yaml:"storage_root"` // Root under which every target's local directory lives
	TargetsFile string `yaml:"targets_file"` // Default targets file when --targets is not passed
	Jobs        int    `yaml:"jobs"`         // Number of targets synchronised concurrently
}

// GitClient holds settings for git transport operations.
type GitClient struct {
	Timeout        time.Duration `yaml:"timeout"`          // Per-target deadline applied by the runner, 0 disables it
	InsecureTLS    *bool         `yaml:"insecure_tls"`     // Skip TLS verification for https remotes
	TokenUsername  string        `yaml:"token_username"`   // Username paired with AUTH_TOKEN for http basic auth
	SSHKey         string        `yaml:"ssh_key"`          // Private key for ssh remotes, ssh-agent is used when empty
	SSHKeyPassword string        `yaml:"ssh_key_password"` // Passphrase of SSHKey
	Proxy          Proxy         `yaml:"proxy"`
}

// Proxy describes an optional proxy for http(s) remotes.
type Proxy struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ValidateConfigPath checks that path points to a regular file.
func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return nil
}

// LoadYAML decodes the YAML file at configPath into data.
func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	d.SetStrict(true)
	if err := d.Decode(data); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

// LoadConfig reads the configuration file. A missing file yields an empty
// configuration when optional is true, so defaults apply.
func LoadConfig(configPath string, optional bool) (*Config, error) {
	cfg := &Config{}

	if optional {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return cfg, nil
		}
	}

	if err := LoadYAML(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config %q: %w", configPath, err)
	}

	return cfg, nil
}
