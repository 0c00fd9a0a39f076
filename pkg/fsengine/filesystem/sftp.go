package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPFileSystem implements FileSystem on a network share reached over SFTP.
type SFTPFileSystem struct {
	*sftp.Client
	sshClient *ssh.Client
	name      string
}

// NewSFTPFileSystem wraps an established SFTP session. sshClient may be nil
// when the caller owns the transport.
func NewSFTPFileSystem(name string, sshClient *ssh.Client, sftpClient *sftp.Client) *SFTPFileSystem {
	return &SFTPFileSystem{Client: sftpClient, sshClient: sshClient, name: name}
}

// ShareAuth holds the credentials used to dial a share. A share is only
// dialled when KnownHosts is set or InsecureHostKey explicitly waives host
// key verification.
type ShareAuth struct {
	User            string
	Password        string
	KeyFile         string
	KnownHosts      string
	InsecureHostKey bool
}

// ErrNoHostKeyPolicy is returned by DialSFTP when auth neither names a
// known_hosts file nor opts out of host key verification.
var ErrNoHostKeyPolicy = errors.New("no known_hosts file and insecure_host_key not set")

// DialSFTP connects to addr and opens an SFTP session.
func DialSFTP(name, addr string, auth ShareAuth, logger zerolog.Logger) (*SFTPFileSystem, error) {
	if auth.KnownHosts == "" && !auth.InsecureHostKey {
		return nil, fmt.Errorf("share %s: %w", name, ErrNoHostKeyPolicy)
	}
	config := &ssh.ClientConfig{
		User:    auth.User,
		Auth:    []ssh.AuthMethod{},
		Timeout: 15 * time.Second,
	}

	if auth.Password != "" {
		config.Auth = append(config.Auth, ssh.Password(auth.Password))
	}
	if auth.KeyFile != "" {
		key, err := os.ReadFile(auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse key file: %w", err)
		}
		config.Auth = append(config.Auth, ssh.PublicKeys(signer))
	}

	if auth.KnownHosts != "" {
		callback, err := knownhosts.New(auth.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
		config.HostKeyCallback = callback
	} else {
		logger.Warn().Str("share", name).Str("addr", addr).Msg("insecure_host_key set, host key not verified")
		config.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}

	sshClient, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, fmt.Errorf("failed to start sftp session: %w", err)
	}

	logger.Debug().Str("share", name).Str("addr", addr).Msg("sftp share connected")
	return NewSFTPFileSystem(name, sshClient, sftpClient), nil
}

func (s *SFTPFileSystem) Name() string { return s.name }

func (s *SFTPFileSystem) Open(name string) (fs.File, error) {
	f, err := s.Client.Open(name)
	if err != nil {
		return nil, mapSFTPError("open", name, err)
	}
	return f, nil
}

func (s *SFTPFileSystem) Create(name string, perm fs.FileMode) (io.WriteCloser, error) {
	f, err := s.Client.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
	if err != nil {
		return nil, mapSFTPError("create", name, err)
	}
	if err := f.Chmod(perm); err != nil {
		_ = f.Close()
		_ = s.Client.Remove(name)
		return nil, mapSFTPError("chmod", name, err)
	}
	return f, nil
}

func (s *SFTPFileSystem) Stat(name string) (fs.FileInfo, error) {
	info, err := s.Client.Stat(name)
	return info, mapSFTPError("stat", name, err)
}

func (s *SFTPFileSystem) Lstat(name string) (fs.FileInfo, error) {
	info, err := s.Client.Lstat(name)
	return info, mapSFTPError("lstat", name, err)
}

func (s *SFTPFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	infos, err := s.Client.ReadDir(name)
	if err != nil {
		return nil, mapSFTPError("readdir", name, err)
	}
	entries := make([]fs.DirEntry, len(infos))
	for i, info := range infos {
		entries[i] = fs.FileInfoToDirEntry(info)
	}
	return entries, nil
}

func (s *SFTPFileSystem) Mkdir(name string, perm fs.FileMode) error {
	if _, err := s.Client.Lstat(name); err == nil {
		return &fs.PathError{Op: "mkdir", Path: name, Err: fs.ErrExist}
	}
	if err := s.Client.Mkdir(name); err != nil {
		return mapSFTPError("mkdir", name, err)
	}
	// servers that refuse attributes on directories keep their default mode
	_ = s.Client.Chmod(name, perm)
	return nil
}

func (s *SFTPFileSystem) MkdirAll(p string, perm fs.FileMode) error {
	return mapSFTPError("mkdir", p, s.Client.MkdirAll(p))
}

func (s *SFTPFileSystem) Remove(name string) error {
	return mapSFTPError("remove", name, s.Client.Remove(name))
}

// RemoveAll walks the tree depth first; not every server version supports
// recursive removal.
func (s *SFTPFileSystem) RemoveAll(name string) error {
	info, err := s.Client.Lstat(name)
	if err != nil {
		return mapSFTPError("remove", name, err)
	}
	if !info.IsDir() {
		return mapSFTPError("remove", name, s.Client.Remove(name))
	}

	type pending struct {
		path     string
		expanded bool
	}
	stack := []pending{{path: name}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.expanded {
			if err := s.Client.RemoveDirectory(top.path); err != nil {
				return mapSFTPError("rmdir", top.path, err)
			}
			stack = stack[:len(stack)-1]
			continue
		}
		top.expanded = true
		dir := top.path
		children, err := s.Client.ReadDir(dir)
		if err != nil {
			return mapSFTPError("readdir", dir, err)
		}
		for _, child := range children {
			childPath := path.Join(dir, child.Name())
			if child.IsDir() {
				stack = append(stack, pending{path: childPath})
				continue
			}
			if err := s.Client.Remove(childPath); err != nil {
				return mapSFTPError("remove", childPath, err)
			}
		}
	}
	return nil
}

func (s *SFTPFileSystem) Rename(oldpath, newpath string) error {
	return mapSFTPError("rename", oldpath, s.Client.Rename(oldpath, newpath))
}

func (s *SFTPFileSystem) Symlink(oldname, newname string) error {
	return mapSFTPError("symlink", newname, s.Client.Symlink(oldname, newname))
}

func (s *SFTPFileSystem) Readlink(name string) (string, error) {
	target, err := s.Client.ReadLink(name)
	return target, mapSFTPError("readlink", name, err)
}

func (s *SFTPFileSystem) Join(elem ...string) string { return path.Join(elem...) }
func (s *SFTPFileSystem) Dir(name string) string     { return path.Dir(name) }
func (s *SFTPFileSystem) Base(name string) string    { return path.Base(name) }

// Close ends the SFTP session and the transport under it.
func (s *SFTPFileSystem) Close() error {
	err := s.Client.Close()
	if s.sshClient != nil {
		err = errors.Join(err, s.sshClient.Close())
	}
	return err
}

// mapSFTPError converts SFTP status codes to the fs sentinel errors so that
// classification does not depend on the backend.
func mapSFTPError(op, name string, err error) error {
	if err == nil {
		return nil
	}
	var status *sftp.StatusError
	if errors.As(err, &status) {
		switch status.FxCode() {
		case sftp.ErrSSHFxNoSuchFile:
			return &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
		case sftp.ErrSSHFxPermissionDenied:
			return &fs.PathError{Op: op, Path: name, Err: fs.ErrPermission}
		case sftp.ErrSSHFxFailure:
			if strings.Contains(strings.ToLower(status.Error()), "exist") {
				return &fs.PathError{Op: op, Path: name, Err: fs.ErrExist}
			}
		}
	}
	return err
}
