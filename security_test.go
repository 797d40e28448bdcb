package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSecret(t *testing.T) {
	got, err := decodeSecret([]byte("cGFzc3dvcmQ=\n"))
	require.NoError(t, err)
	assert.Equal(t, "password", string(got))

	_, err = decodeSecret([]byte("not base64!"))
	assert.Error(t, err)

	assert.Equal(t, "cGFzc3dvcmQ=", encodeSecret([]byte("password")))
}

func TestNewSecretResolver(t *testing.T) {
	for _, source := range []string{"env", "file", "prompt", "base64", "ENV"} {
		r, err := newSecretResolver(source)
		require.NoError(t, err, source)
		assert.NotNil(t, r)
	}
	_, err := newSecretResolver("vault")
	assert.Error(t, err)
}

func TestEnvSecrets(t *testing.T) {
	t.Setenv("LAKEFETCH_TEST_SECRET", "s3cret")
	r, err := newSecretResolver(SecretSourceEnv)
	require.NoError(t, err)

	got, err := r.ResolveSecret(context.Background(), "LAKEFETCH_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", string(got))

	_, err = r.ResolveSecret(context.Background(), "LAKEFETCH_TEST_SECRET_UNSET")
	var secretErr *SecretError
	require.ErrorAs(t, err, &secretErr)
	assert.ErrorIs(t, err, errSecretNotSet)
}

func TestBase64Secrets(t *testing.T) {
	t.Setenv("LAKEFETCH_TEST_ENCODED", "cGFzc3dvcmQ=")
	t.Setenv("LAKEFETCH_TEST_GARBAGE", "%%%")
	r, err := newSecretResolver(SecretSourceBase64)
	require.NoError(t, err)

	got, err := r.ResolveSecret(context.Background(), "LAKEFETCH_TEST_ENCODED")
	require.NoError(t, err)
	assert.Equal(t, "password", string(got))

	_, err = r.ResolveSecret(context.Background(), "LAKEFETCH_TEST_GARBAGE")
	var secretErr *SecretError
	require.ErrorAs(t, err, &secretErr)
	assert.Equal(t, SecretSourceBase64, secretErr.Source)
}

func TestFileSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ftp_password")
	require.NoError(t, os.WriteFile(path, []byte("s3cret\n"), 0600))

	got, err := fileSecrets{}.ResolveSecret(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", string(got))

	_, err = fileSecrets{}.ResolveSecret(context.Background(), path+".missing")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPromptSecrets(t *testing.T) {
	var asked string
	r := promptSecrets{read: func(prompt string) ([]byte, error) {
		asked = prompt
		return []byte("typed"), nil
	}}

	got, err := r.ResolveSecret(context.Background(), "FTP password")
	require.NoError(t, err)
	assert.Equal(t, "typed", string(got))
	assert.Equal(t, "Enter FTP password: ", asked)
}
