/*
PURPOSE:
  Device Handle backed by a secure remote shell (golang.org/x/crypto/ssh).

REQUIREMENTS:
  User-specified:
  - Same capability surface as the adb handle, for host:port targets.
  - Key-file or password authentication.

  Implementation-discovered:
  - Session.Run has no deadline; timeouts are enforced by closing the
    session from a watchdog goroutine.
  - File transfer rides plain sessions (`cat` redirection), avoiding an
    extra SFTP dependency on minimal targets.

ARCHITECTURE INTEGRATION:
  - Constructed by: internal/device/pool.go
  - Uses: golang.org/x/crypto/ssh

ERROR HANDLING:
  - Dial and session-open failures map to ErrDeviceUnreachable; watchdog
    expiry maps to ErrTimeout. Remote non-zero exits are ShellResults.

IMPLEMENTATION RULES:
  - One command per session; the client connection is reused.
  - Remote command text is built only by shellLine (quoted argv).

USAGE:
  h, err := device.NewSSH(target)

SELF-HEALING INSTRUCTIONS:
  - If hosts enforce strict ciphers, extend clientConfig, not call sites.

RELATED FILES:
  - internal/device/device.go

MAINTENANCE:
  - Host key verification is currently trust-on-configure; revisit if
    targets leave the lab network.
*/

package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/edge-bench/edge-runner/internal/model"
)

// sshHandle drives one host over a shared ssh client connection.
type sshHandle struct {
	target model.DeviceTarget
	client *ssh.Client
}

// NewSSH dials the target and returns a Handle. The connection stays open
// for the lifetime of the handle; Close releases it.
func NewSSH(target model.DeviceTarget) (Handle, error) {
	cfg, err := clientConfig(target)
	if err != nil {
		return nil, err
	}
	addr := target.ID
	if !strings.Contains(addr, ":") {
		addr += ":22"
	}
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %v: %w", addr, err, ErrDeviceUnreachable)
	}
	return &sshHandle{target: target, client: client}, nil
}

func clientConfig(target model.DeviceTarget) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if target.KeyFile != "" {
		key, err := os.ReadFile(target.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse key file %s: %w", target.KeyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if target.Password != "" {
		auth = append(auth, ssh.Password(target.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("device %s: no ssh credentials configured", target.ID)
	}
	return &ssh.ClientConfig{
		User:            target.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         15 * time.Second,
	}, nil
}

func (h *sshHandle) ID() string { return h.target.ID }

// Close tears down the client connection.
func (h *sshHandle) Close() error { return h.client.Close() }

// runSession executes line in a fresh session, optionally with stdin, and
// enforces the timeout by closing the session.
func (h *sshHandle) runSession(ctx context.Context, line string, stdin io.Reader, timeout time.Duration) (ShellResult, error) {
	sess, err := h.client.NewSession()
	if err != nil {
		return ShellResult{ExitCode: -1}, fmt.Errorf("ssh session: %v: %w", err, ErrDeviceUnreachable)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr
	sess.Stdin = stdin

	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sess.Run(line) }()

	select {
	case <-ctx.Done():
		sess.Close()
		<-done
		res := ShellResult{ExitCode: -1, Stdout: stdout.String(), Stderr: stderr.String()}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return res, fmt.Errorf("ssh command: %w", ErrTimeout)
		}
		return res, ctx.Err()
	case err = <-done:
	}

	res := ShellResult{ExitCode: 0, Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitStatus()
			return res, nil
		}
		res.ExitCode = -1
		return res, fmt.Errorf("ssh command: %v: %w", err, ErrDeviceUnreachable)
	}
	return res, nil
}

func (h *sshHandle) Shell(ctx context.Context, cmd Command, timeout time.Duration) (ShellResult, error) {
	return h.runSession(ctx, shellLine(cmd), nil, timeout)
}

func (h *sshHandle) Push(ctx context.Context, local, remote string) error {
	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("open %s: %w", local, err)
	}
	defer f.Close()

	line := "cat > " + Quote(remote)
	res, err := h.runSession(ctx, line, f, 10*time.Minute)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("push %s: %s", remote, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func (h *sshHandle) Pull(ctx context.Context, remote, local string) error {
	res, err := h.runSession(ctx, "cat "+Quote(remote), nil, 10*time.Minute)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("pull %s: %s", remote, strings.TrimSpace(res.Stderr))
	}
	return os.WriteFile(local, []byte(res.Stdout), 0644)
}

func (h *sshHandle) Exists(ctx context.Context, path string) (bool, error) {
	res, err := h.Shell(ctx, Command{Argv: []string{"test", "-e", path}}, 15*time.Second)
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

func (h *sshHandle) Mkdir(ctx context.Context, path string) error {
	res, err := h.Shell(ctx, Command{Argv: []string{"mkdir", "-p", path}}, 15*time.Second)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("mkdir %s: %s", path, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func (h *sshHandle) Remove(ctx context.Context, path string) error {
	res, err := h.Shell(ctx, Command{Argv: []string{"rm", "-rf", path}}, 15*time.Second)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("rm %s: %s", path, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func (h *sshHandle) Info(ctx context.Context) (model.DeviceInfo, error) {
	info := model.DeviceInfo{ID: h.target.ID}

	res, err := h.Shell(ctx, Command{Argv: []string{"uname", "-m"}}, 15*time.Second)
	if err != nil {
		return model.DeviceInfo{}, err
	}
	info.ABI = strings.TrimSpace(res.Stdout)

	res, err = h.Shell(ctx, Command{Argv: []string{"uname", "-sr"}}, 15*time.Second)
	if err != nil {
		return model.DeviceInfo{}, err
	}
	info.OSVersion = strings.TrimSpace(res.Stdout)

	res, err = h.Shell(ctx, Command{Argv: []string{"hostname"}}, 15*time.Second)
	if err == nil && res.ExitCode == 0 {
		info.Model = strings.TrimSpace(res.Stdout)
	}
	return info, nil
}
