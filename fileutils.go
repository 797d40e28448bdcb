package main

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
)

const dirPerm = 0755

// ensureTargetDir creates dir and any missing parents. It is a no-op when
// dir already exists.
func ensureTargetDir(dir string) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return &LocalFSError{Op: "mkdir", Path: dir, Err: err}
	}
	return nil
}

// resolveLocalPath joins the base name of remoteName onto targetDir.
func resolveLocalPath(remoteName, targetDir string) (string, error) {
	name := path.Base(remoteName)
	if name == "." || name == ".." || name == "/" {
		return "", fmt.Errorf("refusing to write remote entry %q", remoteName)
	}
	return filepath.Join(targetDir, filepath.FromSlash(name)), nil
}

// saveRemoteFile writes through a temporary file next to localPath and
// renames it into place once fetch succeeds. On failure the temporary file is
// removed and any previous copy at localPath is left alone.
func saveRemoteFile(localPath string, fetch func(w io.Writer) (int64, error)) (int64, error) {
	dir := filepath.Dir(localPath)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(localPath)+".*.part")
	if err != nil {
		return 0, &LocalFSError{Op: "create", Path: localPath, Err: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	n, err := fetch(tmp)
	if err != nil {
		return n, err
	}

	if err := tmp.Sync(); err != nil {
		return n, &LocalFSError{Op: "sync", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return n, &LocalFSError{Op: "close", Path: tmpName, Err: err}
	}
	// CreateTemp uses 0600; downloaded files get the usual umask-based mode.
	if err := os.Chmod(tmpName, 0644); err != nil {
		return n, &LocalFSError{Op: "chmod", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, localPath); err != nil {
		return n, &LocalFSError{Op: "rename", Path: localPath, Err: err}
	}
	committed = true

	return n, nil
}
