package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	SecretSourceEnv    = "env"
	SecretSourceFile   = "file"
	SecretSourcePrompt = "prompt"
	SecretSourceBase64 = "base64"
)

var errSecretNotSet = errors.New("not set")

// SecretResolver looks up a plaintext secret by name.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, name string) ([]byte, error)
}

// SecretResolverFunc adapts a plain function to SecretResolver.
type SecretResolverFunc func(ctx context.Context, name string) ([]byte, error)

func (f SecretResolverFunc) ResolveSecret(ctx context.Context, name string) ([]byte, error) {
	return f(ctx, name)
}

// secureWipe safely clears sensitive data from memory
// It overwrites the slice with zeros
func secureWipe(data []byte) {
	if data == nil {
		return
	}
	for i := range data {
		data[i] = 0
	}
}

// newSecretResolver returns the resolver registered for source.
func newSecretResolver(source string) (SecretResolver, error) {
	switch strings.ToLower(source) {
	case SecretSourceEnv:
		return envSecrets{lookup: os.LookupEnv}, nil
	case SecretSourceFile:
		return fileSecrets{}, nil
	case SecretSourcePrompt:
		return promptSecrets{read: askPassword}, nil
	case SecretSourceBase64:
		return base64Secrets{inner: envSecrets{lookup: os.LookupEnv}}, nil
	default:
		return nil, fmt.Errorf("unknown secret source %q", source)
	}
}

type envSecrets struct {
	lookup func(string) (string, bool)
}

func (s envSecrets) ResolveSecret(_ context.Context, name string) ([]byte, error) {
	v, ok := s.lookup(name)
	if !ok {
		return nil, &SecretError{Name: name, Source: SecretSourceEnv, Err: errSecretNotSet}
	}
	return []byte(v), nil
}

// fileSecrets reads mounted secrets, one per file.
type fileSecrets struct{}

func (fileSecrets) ResolveSecret(_ context.Context, name string) ([]byte, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, &SecretError{Name: name, Source: SecretSourceFile, Err: err}
	}
	return bytes.TrimRight(b, "\r\n"), nil
}

type promptSecrets struct {
	read func(prompt string) ([]byte, error)
}

func (s promptSecrets) ResolveSecret(_ context.Context, name string) ([]byte, error) {
	b, err := s.read(fmt.Sprintf("Enter %s: ", name))
	if err != nil {
		return nil, &SecretError{Name: name, Source: SecretSourcePrompt, Err: err}
	}
	return b, nil
}

// base64Secrets decodes a base64 blob fetched from inner. It hides nothing;
// it only keeps the literal out of shell history.
type base64Secrets struct {
	inner SecretResolver
}

func (s base64Secrets) ResolveSecret(ctx context.Context, name string) ([]byte, error) {
	encoded, err := s.inner.ResolveSecret(ctx, name)
	if err != nil {
		return nil, err
	}
	defer secureWipe(encoded)

	decoded, err := decodeSecret(encoded)
	if err != nil {
		return nil, &SecretError{Name: name, Source: SecretSourceBase64, Err: err}
	}
	return decoded, nil
}

func decodeSecret(encoded []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(encoded)
	out := make([]byte, base64.StdEncoding.DecodedLen(len(trimmed)))
	n, err := base64.StdEncoding.Decode(out, trimmed)
	if err != nil {
		secureWipe(out)
		return nil, fmt.Errorf("malformed base64: %w", err)
	}
	return out[:n], nil
}

func encodeSecret(plain []byte) string {
	return base64.StdEncoding.EncodeToString(plain)
}

// askPassword reads a secret from the terminal without echoing it.
func askPassword(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// readSecretInput prompts on a terminal and otherwise reads all of in.
func readSecretInput(in *os.File, prompt string) ([]byte, error) {
	if term.IsTerminal(int(in.Fd())) {
		return askPassword(prompt)
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}
	return bytes.TrimRight(b, "\r\n"), nil
}
