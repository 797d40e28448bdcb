package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusInProgress ItemStatus = "in_progress"
	StatusDone       ItemStatus = "done"
	StatusFailed     ItemStatus = "failed"
)

// JobItem represents a single file to download
type JobItem struct {
	Name      string     `yaml:"name"`
	Size      int64      `yaml:"size"`
	Status    ItemStatus `yaml:"status"`
	Bytes     int64      `yaml:"bytes"`
	LocalPath string     `yaml:"local_path,omitempty"`
	Error     string     `yaml:"error,omitempty"`
}

// Job holds the entire download job
type Job struct {
	Source     string    `yaml:"source"`
	TargetDir  string    `yaml:"target_dir"`
	Pattern    string    `yaml:"pattern"`
	Listed     int       `yaml:"listed"`
	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at,omitempty"`
	Items      []JobItem `yaml:"items"`

	mutex sync.Mutex
}

func newJob(source, targetDir, pattern string, listed int, entries []Entry) *Job {
	job := &Job{
		Source:    source,
		TargetDir: targetDir,
		Pattern:   pattern,
		Listed:    listed,
		StartedAt: time.Now().UTC(),
		Items:     make([]JobItem, 0, len(entries)),
	}
	for _, e := range entries {
		job.Items = append(job.Items, JobItem{Name: e.Name, Size: e.Size, Status: StatusPending})
	}
	return job
}

// claimNext marks the first pending item in progress and returns a copy of it.
func (job *Job) claimNext() (int, JobItem, bool) {
	job.mutex.Lock()
	defer job.mutex.Unlock()

	for i := range job.Items {
		if job.Items[i].Status == StatusPending {
			job.Items[i].Status = StatusInProgress
			return i, job.Items[i], true
		}
	}
	return -1, JobItem{}, false
}

func (job *Job) finish(i int, localPath string, written int64, err error) {
	job.mutex.Lock()
	defer job.mutex.Unlock()

	item := &job.Items[i]
	item.Bytes = written
	if err != nil {
		item.Status = StatusFailed
		item.Error = err.Error()
		return
	}
	item.Status = StatusDone
	item.LocalPath = localPath
}

func (job *Job) result() *Result {
	job.mutex.Lock()
	defer job.mutex.Unlock()

	res := &Result{Listed: job.Listed, Matched: len(job.Items)}
	for _, item := range job.Items {
		switch item.Status {
		case StatusDone:
			res.Transferred++
			res.Bytes += item.Bytes
		case StatusFailed:
			res.Failed = append(res.Failed, item.Name)
		}
	}
	return res
}

// saveReport writes the job as YAML, replacing any earlier report atomically.
func saveReport(job *Job, reportPath string) error {
	job.mutex.Lock()
	data, err := yaml.Marshal(job)
	job.mutex.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(reportPath), dirPerm); err != nil {
		return &LocalFSError{Op: "mkdir", Path: filepath.Dir(reportPath), Err: err}
	}
	tmp := reportPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return &LocalFSError{Op: "write", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, reportPath); err != nil {
		return &LocalFSError{Op: "rename", Path: reportPath, Err: err}
	}
	return nil
}

// downloadWorker drains pending items through conn until none are left, the
// context is cancelled, or a failure hits under the abort policy.
func downloadWorker(ctx context.Context, job *Job, conn Connector, targetDir, onError string, index int) error {
	logger := LoggerFromContext(ctx).With("worker", index)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		i, item, ok := job.claimNext()
		if !ok {
			return nil // No more jobs
		}

		localPath, err := resolveLocalPath(item.Name, targetDir)
		if err != nil {
			job.finish(i, "", 0, err)
			logger.Error("skipping entry", "file", item.Name, "err", err)
			if onError == OnErrorAbort {
				return &TransferError{Name: item.Name, Err: err}
			}
			continue
		}

		logger.Debug("downloading", "file", item.Name, "size", humanSize(item.Size))

		written, err := saveRemoteFile(localPath, func(w io.Writer) (int64, error) {
			pw := NewProgressWriter(w, item.Size, progressInterval, logProgress(logger, item.Name))
			return conn.Fetch(item.Name, pw)
		})
		if err != nil {
			job.finish(i, localPath, written, err)
			logger.Error("transfer failed", "file", item.Name, "err", err)
			if onError == OnErrorAbort {
				return &TransferError{Name: item.Name, Err: err}
			}
			continue
		}

		job.finish(i, localPath, written, nil)
		logger.Info("downloaded file", "file", item.Name, "target", localPath, "size", humanSize(written))
	}
}
