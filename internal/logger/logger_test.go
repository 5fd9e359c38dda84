package logger

import (
	"bytes"
	"io"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"

	"github.com/scan-io-git/gitmirror/internal/config"
)

func TestDetermineLogLevel(t *testing.T) {
	tests := []struct {
		name string
		env  string
		cfg  *config.Config
		want hclog.Level
	}{
		{name: "Nil config", cfg: nil, want: hclog.Info},
		{name: "Config level", cfg: &config.Config{Logger: config.Logger{Level: "debug"}}, want: hclog.Debug},
		{name: "Env wins", env: "error", cfg: &config.Config{Logger: config.Logger{Level: "debug"}}, want: hclog.Error},
		{name: "Unknown falls back", cfg: &config.Config{Logger: config.Logger{Level: "loud"}}, want: hclog.Info},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GITMIRROR_LOG_LEVEL", tt.env)
			assert.Equal(t, tt.want, determineLogLevel(tt.cfg))
		})
	}
}

func TestNewLoggerJSON(t *testing.T) {
	t.Setenv("GITMIRROR_LOG_LEVEL", "")
	enabled := true
	cfg := &config.Config{Logger: config.Logger{JSONFormat: &enabled}}

	var buf bytes.Buffer
	log := newLogger(cfg, "test", &buf)
	log.Info("synced", "url", "https://example/repo.git")

	assert.Contains(t, buf.String(), `"url":"https://example/repo.git"`)
	assert.Contains(t, buf.String(), `"@module":"test"`)
}

func TestGetLoggerOutput(t *testing.T) {
	assert.Equal(t, io.Discard, GetLoggerOutput(nil))
	assert.Equal(t, io.Discard, GetLoggerOutput(hclog.NewNullLogger()))

	var buf bytes.Buffer
	debug := hclog.New(&hclog.LoggerOptions{Level: hclog.Debug, Output: &buf, DisableTime: true})
	w := GetLoggerOutput(debug)
	_, _ = w.Write([]byte("Counting objects: 3, done.\n"))
	assert.Contains(t, buf.String(), "Counting objects")
}
