// Package seedsrc opens the external directory trees a VFS can be seeded
// from: a local directory, a zip archive or a directory on an SFTP server.
package seedsrc

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/spf13/afero"
	"github.com/spf13/afero/sftpfs"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"vshell/internal/core"
)

var (
	ErrUnsupported = errors.New("unsupported seed source")
	ErrNoPassword  = errors.New("sftp source needs a password")
)

const defaultSFTPPort = "22"

// Options tune how remote sources are reached.
type Options struct {
	// KnownHosts is an OpenSSH known_hosts file used to verify SFTP
	// servers. When empty, host keys are not verified.
	KnownHosts string
	Timeout    time.Duration
}

// Source is an opened seed location. Root is the directory inside Fs to
// import from.
type Source struct {
	Fs      afero.Fs
	Root    string
	closers []func() error
}

// Close releases the archive or connection behind the source.
func (s *Source) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Open opens location. Locations starting with sftp:// are read over SSH,
// names ending in .zip are read as archives and anything else is a local
// directory.
func Open(ctx context.Context, location string, opts Options) (*Source, error) {
	switch {
	case strings.HasPrefix(location, "sftp://"):
		return openSFTP(ctx, location, opts)
	case strings.Contains(location, "://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, location)
	case strings.HasSuffix(strings.ToLower(location), ".zip"):
		return openZip(location)
	default:
		return &Source{Fs: afero.NewReadOnlyFs(afero.NewOsFs()), Root: location}, nil
	}
}

// openZip serves the archive through its io/fs view, which also lists the
// directories implied by file names. Many archivers write no "dir/" entries.
func openZip(path string) (*Source, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return &Source{
		Fs:      afero.FromIOFS{FS: &rc.Reader},
		Root:    ".",
		closers: []func() error{rc.Close},
	}, nil
}

func openSFTP(ctx context.Context, location string, opts Options) (*Source, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("invalid sftp location: %w", err)
	}
	password, ok := u.User.Password()
	if !ok {
		return nil, ErrNoPassword
	}

	hostKey, err := hostKeyCallback(opts.KnownHosts)
	if err != nil {
		return nil, err
	}
	config := &ssh.ClientConfig{
		User:            u.User.Username(),
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: hostKey,
		Timeout:         opts.Timeout,
	}

	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), defaultSFTPPort)
	}

	dialer := &net.Dialer{Timeout: opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ssh: %w", err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to dial ssh: %w", err)
	}
	sshClient := ssh.NewClient(c, chans, reqs)

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("failed to create sftp client: %w", err)
	}

	root := u.Path
	if root == "" {
		root = "."
	}
	return &Source{
		Fs:      afero.NewReadOnlyFs(sftpfs.New(sftpClient)),
		Root:    root,
		closers: []func() error{sshClient.Close, sftpClient.Close},
	}, nil
}

func hostKeyCallback(knownHostsFile string) (ssh.HostKeyCallback, error) {
	if knownHostsFile == "" {
		slog.Warn("sftp host key verification disabled")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts: %w", err)
	}
	return cb, nil
}

// Load imports location into the current directory of tree.
func Load(ctx context.Context, tree *core.Tree, location string, opts Options) (core.ImportSummary, error) {
	src, err := Open(ctx, location, opts)
	if err != nil {
		return core.ImportSummary{}, fmt.Errorf("%w: %w", core.ErrImportFailure, err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			slog.Warn("failed to close seed source", "source", redact(location), "error", err)
		}
	}()

	return core.Import(tree, src.Fs, src.Root)
}

// redact hides the password of an sftp location.
func redact(location string) string {
	u, err := url.Parse(location)
	if err != nil || u.User == nil {
		return location
	}
	return u.Redacted()
}
