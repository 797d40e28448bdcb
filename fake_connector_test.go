package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory server directory shared by every session the
// fake factory opens.
type fakeRemote struct {
	mu        sync.Mutex
	password  string
	dir       string
	entries   []Entry
	files     map[string][]byte
	failAfter map[string]int
	listErr   error
	fetched   []string
	opened    int
	closed    int
}

func newFakeRemote(password, dir string) *fakeRemote {
	return &fakeRemote{
		password:  password,
		dir:       dir,
		files:     map[string][]byte{},
		failAfter: map[string]int{},
	}
}

func (r *fakeRemote) addFile(name string, content []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.files[name]; !exists {
		r.entries = append(r.entries, Entry{Name: name, Size: int64(len(content)), Kind: EntryFile})
	}
	r.files[name] = content
}

func (r *fakeRemote) addFolder(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Name: name, Size: 0, Kind: EntryFolder})
}

func (r *fakeRemote) fetchedNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fetched...)
}

func (r *fakeRemote) sessionCounts() (opened, closed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opened, r.closed
}

type fakeFactory struct {
	remote *fakeRemote
}

func (f *fakeFactory) Accept(u *url.URL) bool { return u.Scheme == "fake" }

func (f *fakeFactory) Create(_ context.Context, u *url.URL, password []byte, _ DialOptions) (Connector, error) {
	r := f.remote
	if string(password) != r.password {
		return nil, &AuthenticationError{Username: u.User.Username(), Err: errors.New("530 Login incorrect")}
	}
	if u.Path != r.dir {
		return nil, &DirectoryError{Path: u.Path, Err: errors.New("550 No such directory")}
	}

	r.mu.Lock()
	r.opened++
	r.mu.Unlock()
	return &fakeConn{remote: r}, nil
}

func (f *fakeFactory) Name() string { return "fake" }

func (f *fakeFactory) DefaultPort() int { return 2121 }

type fakeConn struct {
	remote *fakeRemote
}

func (c *fakeConn) List() ([]Entry, error) {
	c.remote.mu.Lock()
	defer c.remote.mu.Unlock()
	if c.remote.listErr != nil {
		return nil, &ListingError{Path: c.remote.dir, Err: c.remote.listErr}
	}
	return append([]Entry(nil), c.remote.entries...), nil
}

func (c *fakeConn) Fetch(name string, dst io.Writer) (int64, error) {
	c.remote.mu.Lock()
	c.remote.fetched = append(c.remote.fetched, name)
	data, ok := c.remote.files[name]
	cut, fail := c.remote.failAfter[name]
	c.remote.mu.Unlock()

	if !ok {
		return 0, errors.New("550 file unavailable")
	}
	if fail {
		n, _ := dst.Write(data[:cut])
		return int64(n), errors.New("connection reset by peer")
	}
	n, err := dst.Write(data)
	return int64(n), err
}

func (c *fakeConn) Close() error {
	c.remote.mu.Lock()
	defer c.remote.mu.Unlock()
	c.remote.closed++
	return nil
}

func fakeFactories(r *fakeRemote) []ConnectorFactory {
	return []ConnectorFactory{&fakeFactory{remote: r}}
}

func staticSecret(value string) SecretResolver {
	return SecretResolverFunc(func(context.Context, string) ([]byte, error) {
		return []byte(value), nil
	})
}

func testConfig(t *testing.T, r *fakeRemote) *Config {
	t.Helper()
	cfg := &Config{
		Scheme:        "fake",
		Host:          "drop.example.com",
		Username:      "loader",
		SecretSource:  SecretSourceEnv,
		SecretName:    "LAKEFETCH_PASSWORD",
		RemoteDir:     r.dir,
		TargetDir:     filepath.Join(t.TempDir(), "lakehouse", "Files", "ftp_download"),
		Pattern:       "*.csv",
		PatternSyntax: PatternGlob,
		Workers:       1,
		OnError:       OnErrorAbort,
		LogLevel:      "DEBUG",
		LogFormat:     "text",
	}
	require.NoError(t, cfg.Validate(fakeFactories(r)))
	return cfg
}

func testContext() context.Context {
	return WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}
