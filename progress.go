package main

import (
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"
)

const progressInterval = int64(100 * 1024 * 1024) // 100MB

// ProgressWriter wraps an io.Writer and reports progress via a callback.
type ProgressWriter struct {
	Writer         io.Writer
	Total          int64
	OnProgress     func(written int64, total int64)
	totalWritten   int64
	lastReport     int64
	reportInterval int64
}

func NewProgressWriter(w io.Writer, total int64, interval int64, cb func(written int64, total int64)) *ProgressWriter {
	return &ProgressWriter{
		Writer:         w,
		Total:          total,
		OnProgress:     cb,
		reportInterval: interval,
	}
}

func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	if n > 0 {
		pw.totalWritten += int64(n)
		pw.lastReport += int64(n)
		if pw.lastReport >= pw.reportInterval {
			pw.OnProgress(pw.totalWritten, pw.Total)
			pw.lastReport = 0
		}
	}
	return n, err
}

func logProgress(logger *slog.Logger, name string) func(written, total int64) {
	return func(written, total int64) {
		if total > 0 {
			logger.Debug("download progress",
				"file", name,
				"downloaded", humanize.Bytes(uint64(written)),
				"total", humanize.Bytes(uint64(total)),
				"percent", humanize.FtoaWithDigits(float64(written)*100/float64(total), 2))
		} else {
			logger.Debug("download progress", "file", name, "downloaded", humanize.Bytes(uint64(written)))
		}
	}
}

func humanSize(size int64) string {
	if size < 0 {
		return "unknown"
	}
	return humanize.Bytes(uint64(size))
}
