package main

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("LAKEFETCH_HOST", "drop.example.com")
	t.Setenv("LAKEFETCH_TARGET_DIR", "/lakehouse/default/Files/ftp_download_test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "ftp", cfg.Scheme)
	assert.Equal(t, "anonymous", cfg.Username)
	assert.Equal(t, SecretSourceEnv, cfg.SecretSource)
	assert.Equal(t, "LAKEFETCH_PASSWORD", cfg.SecretName)
	assert.Equal(t, `.*\.csv`, cfg.Pattern)
	assert.Equal(t, PatternRegexp, cfg.PatternSyntax)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, OnErrorAbort, cfg.OnError)
	assert.Equal(t, 30*time.Second, cfg.DialTimeout)

	require.NoError(t, cfg.Validate(connectorFactories))
	assert.Equal(t, 21, cfg.Port, "port defaults per scheme")
	assert.Equal(t, "ftp://anonymous@drop.example.com:21/", cfg.SourceURL().String())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("LAKEFETCH_SCHEME", "sftp")
	t.Setenv("LAKEFETCH_HOST", "drop.example.com")
	t.Setenv("LAKEFETCH_REMOTE_DIR", "/npfm/sys/")
	t.Setenv("LAKEFETCH_TARGET_DIR", "/data/in")
	t.Setenv("LAKEFETCH_WORKERS", "4")
	t.Setenv("LAKEFETCH_DIAL_TIMEOUT", "5s")
	t.Setenv("LAKEFETCH_INSECURE_HOST_KEY", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate(connectorFactories))

	assert.Equal(t, 22, cfg.Port)
	assert.Equal(t, "/npfm/sys", cfg.RemoteDir)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, DialOptions{Timeout: 5 * time.Second, InsecureHostKey: true}, cfg.DialOptions())
}

func TestLoadConfig_BadValue(t *testing.T) {
	t.Setenv("LAKEFETCH_WORKERS", "many")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Scheme:        "FTP",
			Host:          "drop.example.com",
			Username:      "loader",
			SecretSource:  SecretSourceEnv,
			SecretName:    "LAKEFETCH_PASSWORD",
			RemoteDir:     "/npfm/sys",
			TargetDir:     "relative/out",
			Pattern:       `.*\.csv`,
			PatternSyntax: PatternRegexp,
			Workers:       1,
			OnError:       OnErrorAbort,
			LogFormat:     "json",
		}
	}

	cfg := valid()
	require.NoError(t, cfg.Validate(connectorFactories))
	assert.Equal(t, "ftp", cfg.Scheme)
	assert.True(t, filepath.IsAbs(cfg.TargetDir))

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"scheme", func(c *Config) { c.Scheme = "http" }, "unsupported scheme"},
		{"host", func(c *Config) { c.Host = " " }, "host is required"},
		{"port", func(c *Config) { c.Port = 70000 }, "out of range"},
		{"secret source", func(c *Config) { c.SecretSource = "vault" }, "unknown secret source"},
		{"remote dir", func(c *Config) { c.RemoteDir = "npfm/sys" }, "must be absolute"},
		{"target dir", func(c *Config) { c.TargetDir = "" }, "target dir is required"},
		{"pattern", func(c *Config) { c.Pattern = "(" }, "invalid selection pattern"},
		{"workers", func(c *Config) { c.Workers = 0 }, "workers must be at least 1"},
		{"on error", func(c *Config) { c.OnError = "retry" }, "on-error"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate(connectorFactories)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_SlogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"Warn":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"loud":  slog.LevelInfo,
	} {
		cfg := &Config{LogLevel: in}
		assert.Equal(t, want, cfg.SlogLevel(), in)
	}
}
