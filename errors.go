package main

import (
	"fmt"
	"strings"
)

// SecretError reports a secret that could not be looked up or decoded.
type SecretError struct {
	Name   string // lookup key of the secret
	Source string // resolver that was asked
	Err    error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret %q from %s: %v", e.Name, e.Source, e.Err)
}

func (e *SecretError) Unwrap() error {
	return e.Err
}

// ConnectionError represents a transport failure while reaching the server.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// AuthenticationError represents a login rejected by the server.
type AuthenticationError struct {
	Username string
	Err      error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed for user %q: %v", e.Username, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// DirectoryError represents a remote working directory that could not be entered.
type DirectoryError struct {
	Path string
	Err  error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("cannot change to remote directory %q: %v", e.Path, e.Err)
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}

// ListingError represents a failed directory listing.
type ListingError struct {
	Path string
	Err  error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("cannot list remote directory %q: %v", e.Path, e.Err)
}

func (e *ListingError) Unwrap() error {
	return e.Err
}

// TransferError represents a single file that could not be downloaded.
type TransferError struct {
	Name string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer of %s failed: %v", e.Name, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// LocalFSError represents a failure on the local filesystem side.
type LocalFSError struct {
	Op   string // mkdir, create, rename...
	Path string
	Err  error
}

func (e *LocalFSError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *LocalFSError) Unwrap() error {
	return e.Err
}

// PartialFailureError is returned when the continue policy let a run finish
// with some files missing.
type PartialFailureError struct {
	Failed []string
	Total  int
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%d of %d transfers failed: %s", len(e.Failed), e.Total, strings.Join(e.Failed, ", "))
}
