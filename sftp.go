package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

type SFTPConnectorFactory struct{}

func (f *SFTPConnectorFactory) Accept(u *url.URL) bool { return u.Scheme == "sftp" }

func (f *SFTPConnectorFactory) Create(ctx context.Context, u *url.URL, password []byte, opts DialOptions) (Connector, error) {
	return NewSFTPConnector(ctx, u, password, opts)
}

func (f *SFTPConnectorFactory) Name() string { return "sftp" }

func (f *SFTPConnectorFactory) DefaultPort() int { return 22 }

type SFTPConnector struct {
	ssh    *ssh.Client
	client *sftp.Client
	dir    string
}

func NewSFTPConnector(ctx context.Context, u *url.URL, password []byte, opts DialOptions) (*SFTPConnector, error) {
	sshClient, err := dialSSH(ctx, u, password, opts)
	if err != nil {
		return nil, err
	}

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, &ConnectionError{Addr: u.Host, Err: fmt.Errorf("failed to start sftp subsystem: %w", err)}
	}

	dir := path.Clean("/" + u.Path)
	info, err := client.Stat(dir)
	if err == nil && !info.IsDir() {
		err = errors.New("not a directory")
	}
	if err != nil {
		_ = client.Close()
		_ = sshClient.Close()
		return nil, &DirectoryError{Path: dir, Err: err}
	}

	return &SFTPConnector{
		ssh:    sshClient,
		client: client,
		dir:    dir,
	}, nil
}

func (s *SFTPConnector) List() ([]Entry, error) {
	infos, err := s.client.ReadDir(s.dir)
	if err != nil {
		return nil, &ListingError{Path: s.dir, Err: err}
	}

	return convertSFTPEntries(s.dir, infos, s.client.Stat), nil
}

// convertSFTPEntries classifies ReadDir results. ReadDir reports lstat data,
// so symlinks are followed with stat to tell linked files from linked
// directories. A link whose target cannot be resolved stays an EntryLink.
func convertSFTPEntries(dir string, infos []os.FileInfo, stat func(string) (os.FileInfo, error)) []Entry {
	entries := make([]Entry, 0, len(infos))
	for _, fi := range infos {
		if fi.Mode()&os.ModeSymlink != 0 {
			if target, err := stat(path.Join(dir, fi.Name())); err == nil {
				fi = namedFileInfo{FileInfo: target, name: fi.Name()}
			}
		}

		entry := Entry{Name: fi.Name(), Size: fi.Size()}
		switch {
		case fi.Mode().IsRegular():
			entry.Kind = EntryFile
		case fi.IsDir():
			entry.Kind = EntryFolder
		default:
			entry.Kind = EntryLink
			entry.Size = -1
		}
		entries = append(entries, entry)
	}
	return entries
}

// namedFileInfo keeps the link's own name on its target's stat data.
type namedFileInfo struct {
	os.FileInfo
	name string
}

func (fi namedFileInfo) Name() string { return fi.name }

func (s *SFTPConnector) Fetch(name string, dst io.Writer) (int64, error) {
	f, err := s.client.Open(path.Join(s.dir, name))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return f.WriteTo(dst)
}

func (s *SFTPConnector) Close() error {
	return errors.Join(s.client.Close(), s.ssh.Close())
}
