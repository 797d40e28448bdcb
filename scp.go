package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"

	"golang.org/x/crypto/ssh"
)

type SCPConnectorFactory struct{}

func (f *SCPConnectorFactory) Accept(u *url.URL) bool { return u.Scheme == "scp" }

func (f *SCPConnectorFactory) Create(ctx context.Context, u *url.URL, password []byte, opts DialOptions) (Connector, error) {
	return NewSCPConnector(ctx, u, password, opts)
}

func (f *SCPConnectorFactory) Name() string { return "scp" }

func (f *SCPConnectorFactory) DefaultPort() int { return 22 }

// SCPConnector drives the remote scp binary in source mode, one ssh session
// per command.
type SCPConnector struct {
	client *ssh.Client
	dir    string
}

func NewSCPConnector(ctx context.Context, u *url.URL, password []byte, opts DialOptions) (*SCPConnector, error) {
	client, err := dialSSH(ctx, u, password, opts)
	if err != nil {
		return nil, err
	}

	s := &SCPConnector{
		client: client,
		dir:    path.Clean("/" + u.Path),
	}

	if _, err := s.run("test -d " + shellQuote(s.dir)); err != nil {
		_ = s.Close()
		return nil, &DirectoryError{Path: s.dir, Err: err}
	}
	return s, nil
}

func (s *SCPConnector) run(cmd string) ([]byte, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	var stderr bytes.Buffer
	session.Stderr = &stderr
	out, err := session.Output(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

func (s *SCPConnector) List() ([]Entry, error) {
	output, err := s.run(fmt.Sprintf("find %s -mindepth 1 -maxdepth 1 -type f", shellQuote(s.dir)))
	if err != nil {
		return nil, &ListingError{Path: s.dir, Err: err}
	}
	return parseFindOutput(output), nil
}

func parseFindOutput(output []byte) []Entry {
	var entries []Entry
	for _, line := range strings.Split(string(output), "\n") {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		entries = append(entries, Entry{Name: path.Base(line), Size: -1, Kind: EntryFile})
	}
	return entries
}

func (s *SCPConnector) Fetch(name string, dst io.Writer) (int64, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return 0, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	stdout, err := session.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		return 0, fmt.Errorf("failed to get stdin pipe: %w", err)
	}

	if err := session.Start("scp -f " + shellQuote(path.Join(s.dir, name))); err != nil {
		return 0, fmt.Errorf("failed to start scp command: %w", err)
	}

	n, err := scpReceive(bufio.NewReader(stdout), bufio.NewWriter(stdin), dst)
	if err != nil {
		return n, err
	}
	_ = stdin.Close()

	return n, session.Wait()
}

// scpReceive runs the sink side of the scp protocol for a single file.
func scpReceive(reader *bufio.Reader, writer *bufio.Writer, dst io.Writer) (int64, error) {
	if err := writeByte(writer, 0); err != nil {
		return 0, fmt.Errorf("failed to write initial null byte: %w", err)
	}

	// read file metadata line (C0664 999999999 test.txt)
	//                          └─┬─┘ └───┬───┘ └───┬───┘
	//                            │       │         │
	//                           mode    size    filename
	line, err := reader.ReadString('\n')
	if err != nil {
		return 0, fmt.Errorf("failed to read file metadata: %w", err)
	}
	if line[0] == 1 || line[0] == 2 {
		return 0, fmt.Errorf("remote scp: %s", strings.TrimSpace(line[1:]))
	}

	fields := strings.SplitN(strings.TrimSpace(line), " ", 3)
	if len(fields) != 3 || !strings.HasPrefix(fields[0], "C") {
		return 0, fmt.Errorf("unexpected SCP metadata format: %q", line)
	}

	size, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid file size: %w", err)
	}

	if err := writeByte(writer, 0); err != nil {
		return 0, fmt.Errorf("failed to acknowledge metadata: %w", err)
	}

	n, err := io.Copy(dst, io.LimitReader(reader, size))
	if err != nil {
		return n, err
	}
	if n != size {
		return n, fmt.Errorf("short scp transfer: got %d of %d bytes", n, size)
	}

	// remote confirmation
	if b, err := reader.ReadByte(); err != nil || b != 0 {
		return n, fmt.Errorf("unexpected trailing byte: %v (%v)", b, err)
	}

	if err := writeByte(writer, 0); err != nil {
		return n, fmt.Errorf("failed to send final null byte: %w", err)
	}
	return n, nil
}

func (s *SCPConnector) Close() error {
	return s.client.Close()
}

func writeByte(w *bufio.Writer, b byte) error {
	if _, err := w.Write([]byte{b}); err != nil {
		return err
	}
	return w.Flush()
}
