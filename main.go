package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// exitFunc allows tests to stub process exit behavior
var exitFunc = os.Exit

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		exitFunc(1)
		return
	}

	exitFunc(execute(newRootCmd(cfg, connectorFactories), os.Stderr))
}

// execute runs cmd and returns the process exit code. Cobra's own error
// output is silenced, so the error is printed here.
func execute(cmd *cobra.Command, stderr io.Writer) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderr, "lakefetch:", err)
		return 1
	}
	return 0
}

func newRootCmd(cfg *Config, factories []ConnectorFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lakefetch",
		Short: "Download files matching a pattern from a remote directory",
		Long: "Connects to an FTP, FTPS, SFTP or SCP server, lists one remote directory and copies every " +
			"file whose name matches the selection pattern into a local directory.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg, factories)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Scheme, "scheme", cfg.Scheme, "transport: ftp, ftps, sftp or scp")
	f.StringVar(&cfg.Host, "host", cfg.Host, "remote host")
	f.IntVar(&cfg.Port, "port", cfg.Port, "remote port (0 picks the scheme default)")
	f.StringVarP(&cfg.Username, "user", "u", cfg.Username, "login name")
	f.StringVar(&cfg.SecretSource, "secret-source", cfg.SecretSource, "where the password comes from: env, file, prompt or base64")
	f.StringVar(&cfg.SecretName, "secret-name", cfg.SecretName, "secret lookup key (env variable or file path)")
	f.StringVar(&cfg.RemoteDir, "remote-dir", cfg.RemoteDir, "absolute remote directory")
	f.StringVarP(&cfg.TargetDir, "target-dir", "t", cfg.TargetDir, "local destination directory")
	f.StringVarP(&cfg.Pattern, "pattern", "p", cfg.Pattern, "selection pattern")
	f.StringVar(&cfg.PatternSyntax, "pattern-syntax", cfg.PatternSyntax, "pattern syntax: regexp or glob")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent sessions")
	f.StringVar(&cfg.OnError, "on-error", cfg.OnError, "policy for a failed file: abort or continue")
	f.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "connect timeout")
	f.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "list matching files without downloading")
	f.BoolVar(&cfg.TLSInsecure, "tls-insecure", cfg.TLSInsecure, "ftps: skip certificate verification")
	f.BoolVar(&cfg.DisableEPSV, "disable-epsv", cfg.DisableEPSV, "ftp: use PASV instead of EPSV")
	f.StringVar(&cfg.KnownHostsFile, "known-hosts", cfg.KnownHostsFile, "ssh: known_hosts file")
	f.BoolVar(&cfg.InsecureHostKey, "insecure-host-key", cfg.InsecureHostKey, "ssh: accept any host key")
	f.StringVar(&cfg.ReportPath, "report", cfg.ReportPath, "write a YAML run report to this path")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "DEBUG, INFO, WARN or ERROR")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")

	cmd.AddCommand(newEncodeSecretCmd())
	return cmd
}

func newEncodeSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode-secret",
		Short: "Print the base64 form of a secret for use with --secret-source=base64",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readSecretInput(os.Stdin, "Secret to encode: ")
			if err != nil {
				return err
			}
			defer secureWipe(secret)

			_, err = fmt.Fprintln(cmd.OutOrStdout(), encodeSecret(secret))
			return err
		},
	}
}

func run(ctx context.Context, cfg *Config, factories []ConnectorFactory) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	if err := cfg.Validate(factories); err != nil {
		logger.Error("invalid configuration", "err", err)
		return err
	}

	secrets, err := newSecretResolver(cfg.SecretSource)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("lakefetch starting", "version", Version, "log_level", cfg.LogLevel, "workers", cfg.Workers)

	res, err := NewPipeline(cfg, factories, secrets).Run(WithLogger(ctx, logger))
	if err != nil {
		var partial *PartialFailureError
		if errors.As(err, &partial) {
			logger.Error("some files were not downloaded", "failed", partial.Failed)
		} else {
			logger.Error("fatal error", "err", err)
		}
		return err
	}

	logger.Info("all downloads completed", "transferred", res.Transferred, "matched", res.Matched)
	return nil
}
