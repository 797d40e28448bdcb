package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		err  error
		want string
	}{
		{&SecretError{Name: "FTP_PW", Source: "base64", Err: cause}, `secret "FTP_PW" from base64: boom`},
		{&ConnectionError{Addr: "drop:21", Err: cause}, "connection to drop:21 failed: boom"},
		{&AuthenticationError{Username: "loader", Err: cause}, `authentication failed for user "loader": boom`},
		{&DirectoryError{Path: "/npfm/sys", Err: cause}, `cannot change to remote directory "/npfm/sys": boom`},
		{&ListingError{Path: "/npfm/sys", Err: cause}, `cannot list remote directory "/npfm/sys": boom`},
		{&TransferError{Name: "a.csv", Err: cause}, "transfer of a.csv failed: boom"},
		{&LocalFSError{Op: "rename", Path: "/data/a.csv", Err: cause}, "rename /data/a.csv: boom"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%T", tt.err), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())

			wrapped := fmt.Errorf("context: %w", tt.err)
			assert.ErrorIs(t, wrapped, cause, "cause is reachable through the chain")
		})
	}
}

func TestPartialFailureError(t *testing.T) {
	err := fmt.Errorf("run: %w", &PartialFailureError{Failed: []string{"b.csv", "d.csv"}, Total: 5})

	var partial *PartialFailureError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "run: 2 of 5 transfers failed: b.csv, d.csv", err.Error())
}

func TestTransferErrorAs(t *testing.T) {
	inner := &LocalFSError{Op: "create", Path: "/data/a.csv", Err: errors.New("disk full")}
	err := fmt.Errorf("worker 1: %w", &TransferError{Name: "a.csv", Err: inner})

	var transferErr *TransferError
	require.ErrorAs(t, err, &transferErr)
	assert.Equal(t, "a.csv", transferErr.Name)

	var fsErr *LocalFSError
	require.ErrorAs(t, err, &fsErr)
	assert.Equal(t, "create", fsErr.Op)
}
