package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// acceptedHosts stores fingerprints confirmed at the prompt during this run,
// so extra worker sessions do not ask again.
var (
	acceptedHosts   = make(map[string]string)
	acceptedHostsMu sync.Mutex
)

func promptHostKeyCallback(in io.Reader, out io.Writer) ssh.HostKeyCallback {
	reader := bufio.NewReader(in)
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		fingerprint := ssh.FingerprintSHA256(key)

		acceptedHostsMu.Lock()
		defer acceptedHostsMu.Unlock()
		if stored, exists := acceptedHosts[hostname]; exists && stored == fingerprint {
			return nil
		}

		fmt.Fprintf(out, "\nThe authenticity of host '%s' can't be established.\n", hostname)
		fmt.Fprintf(out, "%s key fingerprint is %s\n", key.Type(), fingerprint)
		fmt.Fprint(out, "Are you sure you want to continue connecting (yes/no)? ")

		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read user input: %w", err)
		}

		response = strings.TrimSpace(strings.ToLower(response))
		if response == "yes" || response == "y" {
			acceptedHosts[hostname] = fingerprint
			return nil
		}

		return fmt.Errorf("host key verification rejected by user")
	}
}

func hostKeyCallback(opts DialOptions) (ssh.HostKeyCallback, error) {
	switch {
	case opts.KnownHostsFile != "":
		cb, err := knownhosts.New(opts.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("known_hosts: %w", err)
		}
		return cb, nil
	case opts.InsecureHostKey:
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // explicit opt-in
	default:
		return promptHostKeyCallback(os.Stdin, os.Stderr), nil
	}
}

// signerFromSecret parses secret as a private key, either raw PEM or base64
// wrapped PEM.
func signerFromSecret(secret []byte) (ssh.Signer, bool) {
	if signer, err := ssh.ParsePrivateKey(secret); err == nil {
		return signer, true
	}
	keyBytes, err := base64.StdEncoding.DecodeString(string(secret))
	if err != nil {
		return nil, false
	}
	defer secureWipe(keyBytes)
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, false
	}
	return signer, true
}

func sshAuthMethods(secret []byte) []ssh.AuthMethod {
	if signer, ok := signerFromSecret(secret); ok {
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}
	}
	return []ssh.AuthMethod{ssh.Password(string(secret))}
}

func dialSSH(ctx context.Context, u *url.URL, secret []byte, opts DialOptions) (*ssh.Client, error) {
	hostKeyCB, err := hostKeyCallback(opts)
	if err != nil {
		return nil, &ConnectionError{Addr: u.Host, Err: err}
	}

	config := &ssh.ClientConfig{
		User:            u.User.Username(),
		Auth:            sshAuthMethods(secret),
		HostKeyCallback: hostKeyCB,
		Timeout:         opts.Timeout,
	}

	d := net.Dialer{Timeout: opts.Timeout}
	conn, err := d.DialContext(ctx, "tcp", u.Host)
	if err != nil {
		return nil, &ConnectionError{Addr: u.Host, Err: err}
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, u.Host, config)
	if err != nil {
		_ = conn.Close()
		return nil, classifySSHError(u, err)
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// classifySSHError separates rejected credentials from transport failures.
// x/crypto/ssh exposes no typed error for the former.
func classifySSHError(u *url.URL, err error) error {
	if strings.Contains(err.Error(), "unable to authenticate") {
		return &AuthenticationError{Username: u.User.Username(), Err: err}
	}
	return &ConnectionError{Addr: u.Host, Err: err}
}

// shellQuote single-quotes s for a POSIX shell unless it only holds safe characters.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, func(r rune) bool {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return false
		}
		switch r {
		case '-', '_', '.', '/', '@', ':', ',', '+', '=':
			return false
		}
		return true
	}) == -1 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}
