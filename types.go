package main

import (
	"context"
	"io"
	"net/url"
	"time"
)

// EntryKind tells files apart from everything else a listing may return.
type EntryKind int

const (
	EntryUnknown EntryKind = iota
	EntryFile
	EntryFolder
	EntryLink
)

// Entry is a single name from a flat remote listing.
type Entry struct {
	Name string
	Size int64 // -1 when the server did not report it
	Kind EntryKind
}

// Connector is an authenticated session bound to one remote directory.
type Connector interface {
	// List returns the entries of the session's working directory, without recursion.
	List() ([]Entry, error)
	// Fetch streams the named entry of the working directory into dst.
	Fetch(name string, dst io.Writer) (int64, error)
	Close() error
}

// ConnectorFactory interface for creating connectors
type ConnectorFactory interface {
	Accept(u *url.URL) bool
	Create(ctx context.Context, u *url.URL, password []byte, opts DialOptions) (Connector, error)
	Name() string
	DefaultPort() int
}

// DialOptions carries the transport knobs shared by every connector.
type DialOptions struct {
	Timeout         time.Duration
	TLSInsecure     bool
	DisableEPSV     bool
	KnownHostsFile  string
	InsecureHostKey bool
}
