package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Result summarizes one run.
type Result struct {
	Listed      int
	Matched     int
	Transferred int
	Failed      []string
	Bytes       int64
}

// Pipeline downloads the matching files of one remote directory.
type Pipeline struct {
	cfg       *Config
	factories []ConnectorFactory
	secrets   SecretResolver
}

// NewPipeline expects cfg to have passed Validate against the same factories.
func NewPipeline(cfg *Config, factories []ConnectorFactory, secrets SecretResolver) *Pipeline {
	return &Pipeline{cfg: cfg, factories: factories, secrets: secrets}
}

// Run connects, ensures the target directory, lists, filters and transfers.
// Every session it opens is closed before it returns.
func (p *Pipeline) Run(ctx context.Context) (res *Result, err error) {
	logger := LoggerFromContext(ctx)

	selector, err := NewSelector(p.cfg.Pattern, p.cfg.PatternSyntax)
	if err != nil {
		return nil, err
	}

	u := p.cfg.SourceURL()
	factory := getConnectorFactory(p.factories, u)
	if factory == nil {
		return nil, fmt.Errorf("no connector available for scheme: %s", u.Scheme)
	}

	password, err := p.secrets.ResolveSecret(ctx, p.cfg.SecretName)
	if err != nil {
		return nil, err
	}
	defer secureWipe(password)

	// =========================================================================
	// Connect
	logger.Info("connecting", "source", u.String())

	var sessions []Connector
	defer func() {
		for i, conn := range sessions {
			if closeErr := conn.Close(); closeErr != nil {
				logger.Warn("failed to close session", "worker", i+1, "err", closeErr)
			}
		}
		logger.Debug("sessions closed", "count", len(sessions))
	}()

	primary, err := factory.Create(ctx, u, password, p.cfg.DialOptions())
	if err != nil {
		return nil, err
	}
	sessions = append(sessions, primary)

	// =========================================================================
	// Ensure destination
	if err := ensureTargetDir(p.cfg.TargetDir); err != nil {
		return nil, err
	}

	// =========================================================================
	// List and filter
	entries, err := primary.List()
	if err != nil {
		return nil, err
	}
	matched := selector.Select(entries)
	logger.Info("listed remote directory",
		"dir", p.cfg.RemoteDir,
		"entries", len(entries),
		"matched", len(matched),
		"pattern", selector.String(),
	)

	job := newJob(u.Redacted(), p.cfg.TargetDir, selector.String(), len(entries), matched)
	if p.cfg.ReportPath != "" {
		defer func() {
			job.FinishedAt = time.Now().UTC()
			if reportErr := saveReport(job, p.cfg.ReportPath); reportErr != nil {
				logger.Error("failed to write report", "path", p.cfg.ReportPath, "err", reportErr)
				err = errors.Join(err, reportErr)
				return
			}
			logger.Debug("report written", "path", p.cfg.ReportPath)
		}()
	}

	if p.cfg.DryRun {
		for _, e := range matched {
			logger.Info("would download", "file", e.Name, "size", humanSize(e.Size))
		}
		return job.result(), nil
	}
	if len(matched) == 0 {
		logger.Info("no files to download")
		return job.result(), nil
	}

	// =========================================================================
	// Extra sessions, one per additional worker
	workers := min(p.cfg.Workers, len(matched))
	for len(sessions) < workers {
		conn, err := factory.Create(ctx, u, password, p.cfg.DialOptions())
		if err != nil {
			return job.result(), err
		}
		sessions = append(sessions, conn)
	}
	secureWipe(password)

	// =========================================================================
	// Transfer
	g, gctx := errgroup.WithContext(ctx)
	for i, conn := range sessions {
		g.Go(func() error {
			return downloadWorker(gctx, job, conn, p.cfg.TargetDir, p.cfg.OnError, i+1)
		})
	}
	err = g.Wait()

	res = job.result()
	logger.Info("run finished",
		"transferred", res.Transferred,
		"failed", len(res.Failed),
		"bytes", humanSize(res.Bytes),
	)
	if err != nil {
		return res, err
	}
	if len(res.Failed) > 0 {
		return res, &PartialFailureError{Failed: res.Failed, Total: res.Matched}
	}
	return res, nil
}
