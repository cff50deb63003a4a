/*
PURPOSE:
  Device Handle backed by the Android debug bridge (`adb` binary).

REQUIREMENTS:
  User-specified:
  - Push/pull/shell/exists/mkdir/remove/info against a serial-addressed
    device.

  Implementation-discovered:
  - adb shell (protocol v2) forwards the remote exit code, so exit status
    can be read straight from the local process state.
  - The client prints its own transport diagnostics ("adb: device ... not
    found", "error: device offline") on stderr; only those mean the bridge
    is gone. Remote stderr is forwarded verbatim and is never a transport
    signal.

ARCHITECTURE INTEGRATION:
  - Constructed by: internal/device/pool.go
  - Uses: os/exec with context cancellation.

ERROR HANDLING:
  - Transport failures map to ErrDeviceUnreachable, deadline hits to
    ErrTimeout; remote non-zero exits are plain ShellResults.

IMPLEMENTATION RULES:
  - Every adb invocation pins the serial with -s.
  - Remote command text is built only by shellLine (quoted argv).

USAGE:
  h := device.NewADB("RF8M33XYZ")

SELF-HEALING INSTRUCTIONS:
  - If adb output formats change, only Info() should need touching.

RELATED FILES:
  - internal/device/device.go

MAINTENANCE:
  - Keep getprop keys in sync with the ABIs we report on.
*/

package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/edge-bench/edge-runner/internal/model"
)

// adbHandle drives one device through the local adb client.
type adbHandle struct {
	serial string
}

// NewADB returns a Handle for the device with the given serial.
func NewADB(serial string) Handle {
	return &adbHandle{serial: serial}
}

func (h *adbHandle) ID() string { return h.serial }

// run executes one adb invocation and classifies transport failures.
func (h *adbHandle) run(ctx context.Context, args ...string) (ShellResult, error) {
	argv := append([]string{"-s", h.serial}, args...)
	cmd := exec.CommandContext(ctx, "adb", argv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := ShellResult{
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("adb %s: %w", args[0], ErrTimeout)
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// adb binary missing or not startable: the bridge itself is gone.
			return res, fmt.Errorf("adb %s: %v: %w", args[0], err, ErrDeviceUnreachable)
		}
	}
	if line := clientError(res.Stderr); line != "" {
		return res, fmt.Errorf("adb %s: %s: %w", args[0], line, ErrDeviceUnreachable)
	}
	return res, nil
}

// clientError returns the adb client's own transport diagnostic, or "".
// Only lines the local client prints count; `adb shell` forwards the remote
// stderr verbatim, and a remote "not found" is a command failure, not a
// dead bridge.
func clientError(stderr string) string {
	for _, raw := range strings.Split(stderr, "\n") {
		line := strings.TrimSpace(raw)
		lower := strings.ToLower(line)
		anchored := strings.HasPrefix(lower, "adb: ") || strings.HasPrefix(lower, "error: ")
		if !anchored {
			continue
		}
		if strings.Contains(lower, "device") && strings.Contains(lower, "not found") {
			return line
		}
		if strings.Contains(lower, "device offline") {
			return line
		}
		if strings.Contains(lower, "no devices/emulators found") {
			return line
		}
	}
	return ""
}

func (h *adbHandle) Shell(ctx context.Context, cmd Command, timeout time.Duration) (ShellResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return h.run(ctx, "shell", shellLine(cmd))
}

func (h *adbHandle) Push(ctx context.Context, local, remote string) error {
	res, err := h.run(ctx, "push", local, remote)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("adb push %s: %s", local, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func (h *adbHandle) Pull(ctx context.Context, remote, local string) error {
	res, err := h.run(ctx, "pull", remote, local)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("adb pull %s: %s", remote, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func (h *adbHandle) Exists(ctx context.Context, path string) (bool, error) {
	res, err := h.run(ctx, "shell", shellLine(Command{Argv: []string{"test", "-e", path}}))
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

func (h *adbHandle) Mkdir(ctx context.Context, path string) error {
	res, err := h.run(ctx, "shell", shellLine(Command{Argv: []string{"mkdir", "-p", path}}))
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("mkdir %s: %s", path, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func (h *adbHandle) Remove(ctx context.Context, path string) error {
	res, err := h.run(ctx, "shell", shellLine(Command{Argv: []string{"rm", "-rf", path}}))
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("rm %s: %s", path, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func (h *adbHandle) Info(ctx context.Context) (model.DeviceInfo, error) {
	info := model.DeviceInfo{ID: h.serial}
	props := []struct {
		key string
		dst *string
	}{
		{"ro.product.model", &info.Model},
		{"ro.build.version.release", &info.OSVersion},
		{"ro.product.cpu.abi", &info.ABI},
	}
	for _, p := range props {
		res, err := h.run(ctx, "shell", shellLine(Command{Argv: []string{"getprop", p.key}}))
		if err != nil {
			return model.DeviceInfo{}, err
		}
		*p.dst = strings.TrimSpace(res.Stdout)
	}
	return info, nil
}
