package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "LAKEFETCH"

const (
	OnErrorAbort    = "abort"
	OnErrorContinue = "continue"
)

// Config struct for environment variables.
type Config struct {
	Scheme   string `envconfig:"SCHEME" default:"ftp"`
	Host     string `envconfig:"HOST"`
	Port     int    `envconfig:"PORT"`
	Username string `envconfig:"USERNAME" default:"anonymous"`

	SecretSource string `envconfig:"SECRET_SOURCE" default:"env"`
	SecretName   string `envconfig:"SECRET_NAME" default:"LAKEFETCH_PASSWORD"`

	RemoteDir     string `envconfig:"REMOTE_DIR" default:"/"`
	TargetDir     string `envconfig:"TARGET_DIR"`
	Pattern       string `envconfig:"PATTERN" default:".*\\.csv"`
	PatternSyntax string `envconfig:"PATTERN_SYNTAX" default:"regexp"`

	Workers     int           `envconfig:"WORKERS" default:"1"`
	OnError     string        `envconfig:"ON_ERROR" default:"abort"`
	DialTimeout time.Duration `envconfig:"DIAL_TIMEOUT" default:"30s"`
	DryRun      bool          `envconfig:"DRY_RUN"`

	TLSInsecure     bool   `envconfig:"TLS_INSECURE"`
	DisableEPSV     bool   `envconfig:"DISABLE_EPSV"`
	KnownHostsFile  string `envconfig:"KNOWN_HOSTS"`
	InsecureHostKey bool   `envconfig:"INSECURE_HOST_KEY"`

	ReportPath string `envconfig:"REPORT_PATH"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"INFO"`
	LogFormat  string `envconfig:"LOG_FORMAT" default:"text"`
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	return &cfg, nil
}

// Validate normalizes the config in place and reports every problem found.
func (c *Config) Validate(factories []ConnectorFactory) error {
	var errs []error

	c.Scheme = strings.ToLower(strings.TrimSpace(c.Scheme))
	factory := getConnectorFactory(factories, &url.URL{Scheme: c.Scheme})
	if factory == nil {
		errs = append(errs, fmt.Errorf("unsupported scheme %q (supported: %s)", c.Scheme, strings.Join(supportedSchemes(factories), ", ")))
	} else if c.Port == 0 {
		c.Port = factory.DefaultPort()
	}

	if strings.TrimSpace(c.Host) == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Username == "" {
		errs = append(errs, errors.New("username is required"))
	}
	if _, err := newSecretResolver(c.SecretSource); err != nil {
		errs = append(errs, err)
	}
	if c.SecretName == "" {
		errs = append(errs, errors.New("secret name is required"))
	}

	if !strings.HasPrefix(c.RemoteDir, "/") {
		errs = append(errs, fmt.Errorf("remote dir %q must be absolute", c.RemoteDir))
	} else {
		c.RemoteDir = path.Clean(c.RemoteDir)
	}

	if c.TargetDir == "" {
		errs = append(errs, errors.New("target dir is required"))
	} else if abs, err := filepath.Abs(c.TargetDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to resolve target dir: %w", err))
	} else {
		c.TargetDir = abs
	}

	if _, err := NewSelector(c.Pattern, c.PatternSyntax); err != nil {
		errs = append(errs, err)
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	switch c.OnError {
	case OnErrorAbort, OnErrorContinue:
	default:
		errs = append(errs, fmt.Errorf("on-error must be %q or %q, got %q", OnErrorAbort, OnErrorContinue, c.OnError))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// SourceURL returns the remote location without any password attached.
func (c *Config) SourceURL() *url.URL {
	return &url.URL{
		Scheme: c.Scheme,
		User:   url.User(c.Username),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   c.RemoteDir,
	}
}

func (c *Config) DialOptions() DialOptions {
	return DialOptions{
		Timeout:         c.DialTimeout,
		TLSInsecure:     c.TLSInsecure,
		DisableEPSV:     c.DisableEPSV,
		KnownHostsFile:  c.KnownHostsFile,
		InsecureHostKey: c.InsecureHostKey,
	}
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
