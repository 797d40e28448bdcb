package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"

	"github.com/jlaffaye/ftp"
)

type FTPConnectorFactory struct{}

func (f *FTPConnectorFactory) Accept(u *url.URL) bool {
	return u.Scheme == "ftp" || u.Scheme == "ftps"
}

func (f *FTPConnectorFactory) Create(ctx context.Context, u *url.URL, password []byte, opts DialOptions) (Connector, error) {
	return NewFTPConnector(ctx, u, password, opts)
}

func (f *FTPConnectorFactory) Name() string {
	return "ftp, ftps"
}

func (f *FTPConnectorFactory) DefaultPort() int {
	return 21
}

// ftpConn is the slice of *ftp.ServerConn the connector relies on.
type ftpConn interface {
	Login(user, password string) error
	ChangeDir(path string) error
	List(path string) ([]*ftp.Entry, error)
	NameList(path string) ([]string, error)
	Retr(path string) (*ftp.Response, error)
	Quit() error
}

type FTPConnector struct {
	client ftpConn
	dir    string
	// retrieve is swapped in tests, where *ftp.Response cannot be built.
	retrieve func(name string) (io.ReadCloser, error)
}

func NewFTPConnector(ctx context.Context, u *url.URL, password []byte, opts DialOptions) (*FTPConnector, error) {
	dialOpts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithDisabledEPSV(opts.DisableEPSV),
	}
	if opts.Timeout > 0 {
		dialOpts = append(dialOpts, ftp.DialWithTimeout(opts.Timeout))
	}
	if u.Scheme == "ftps" {
		dialOpts = append(dialOpts, ftp.DialWithExplicitTLS(&tls.Config{
			ServerName:         u.Hostname(),
			InsecureSkipVerify: opts.TLSInsecure, //nolint:gosec // opt-in for self-signed drops
		}))
	}

	c, err := ftp.Dial(u.Host, dialOpts...)
	if err != nil {
		return nil, &ConnectionError{Addr: u.Host, Err: err}
	}

	conn, err := openFTPSession(c, u.User.Username(), password, u.Path)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// openFTPSession logs in and enters dir. The connection is closed on failure.
func openFTPSession(c ftpConn, username string, password []byte, dir string) (*FTPConnector, error) {
	if err := c.Login(username, string(password)); err != nil {
		_ = c.Quit()
		return nil, &AuthenticationError{Username: username, Err: err}
	}

	if dir == "" {
		dir = "/"
	}
	if err := c.ChangeDir(dir); err != nil {
		_ = c.Quit()
		return nil, &DirectoryError{Path: dir, Err: err}
	}

	f := &FTPConnector{
		client: c,
		dir:    dir,
	}
	f.retrieve = func(name string) (io.ReadCloser, error) {
		return f.client.Retr(name)
	}
	return f, nil
}

// List uses LIST for type information and falls back to NLST on servers that
// refuse it.
func (f *FTPConnector) List() ([]Entry, error) {
	entries, err := f.client.List("")
	if err == nil {
		return convertFTPEntries(entries), nil
	}

	names, nlstErr := f.client.NameList("")
	if nlstErr != nil {
		return nil, &ListingError{Path: f.dir, Err: errors.Join(err, nlstErr)}
	}

	out := make([]Entry, 0, len(names))
	for _, name := range names {
		out = append(out, Entry{Name: path.Base(name), Size: -1, Kind: EntryUnknown})
	}
	return out, nil
}

func convertFTPEntries(entries []*ftp.Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		entry := Entry{Name: e.Name, Size: int64(e.Size)}
		switch e.Type {
		case ftp.EntryTypeFile:
			entry.Kind = EntryFile
		case ftp.EntryTypeFolder:
			entry.Kind = EntryFolder
		case ftp.EntryTypeLink:
			entry.Kind = EntryLink
			entry.Size = -1
		}
		out = append(out, entry)
	}
	return out
}

func (f *FTPConnector) Fetch(name string, dst io.Writer) (int64, error) {
	r, err := f.retrieve(name)
	if err != nil {
		return 0, fmt.Errorf("RETR %s: %w", name, err)
	}

	n, err := io.Copy(dst, r)
	// Close reads the final transfer status; a short read shows up here.
	if closeErr := r.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("finishing RETR %s: %w", name, closeErr)
	}
	return n, err
}

func (f *FTPConnector) Close() error {
	return f.client.Quit()
}
