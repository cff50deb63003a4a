/*
PURPOSE:
  Defines the uniform capability surface over a remote benchmark target and
  the shared error taxonomy of the device layer.

REQUIREMENTS:
  User-specified:
  - One contract for both adb- and ssh-reachable targets.
  - Shell must enforce its own timeout; on timeout the remote process is in
    an indeterminate state.

  Implementation-discovered:
  - Remote command strings must be assembled from quoted argv elements in one
    place; callers never concatenate paths into shell text themselves.

ARCHITECTURE INTEGRATION:
  - Implemented by: internal/device/adb.go, internal/device/ssh.go
  - Consumed by: internal/device/pool.go, internal/engine

ERROR HANDLING:
  - Sentinel errors (ErrTimeout, ErrDeviceUnreachable, ErrDeviceNotFound)
    wrapped with context; callers classify via errors.Is.

IMPLEMENTATION RULES:
  - All operations are synchronous and return only on completion, failure,
    or timeout.
  - Non-zero remote exit codes are results, not errors; only transport and
    timeout failures surface as errors.

USAGE:
  res, err := h.Shell(ctx, device.Command{Argv: []string{"ls", dir}}, 10*time.Second)

SELF-HEALING INSTRUCTIONS:
  - New target kinds implement Handle; never dispatch on concrete type.

RELATED FILES:
  - internal/device/pool.go
  - internal/engine/driver.go

MAINTENANCE:
  - Keep the interface minimal; helpers belong on the callers.
*/

package device

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/edge-bench/edge-runner/internal/model"
)

var (
	// ErrDeviceNotFound means the id is absent from configuration.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrDeviceUnreachable means the target did not answer a connectivity
	// probe or a transport-level operation.
	ErrDeviceUnreachable = errors.New("device unreachable")
	// ErrTimeout means a shell command exceeded its bound. The remote
	// process state is indeterminate; callers must not assume cleanup.
	ErrTimeout = errors.New("command timed out")
)

// Command is one remote invocation. Argv is passed through parameterized
// quoting, never raw concatenation. Dir, if set, is the remote working
// directory; Env entries are exported for the command only.
type Command struct {
	Argv []string
	Dir  string
	Env  map[string]string
}

// ShellResult carries what the remote command produced.
type ShellResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Handle is the capability surface of one remote target. Implementations
// are not safe for concurrent use; the Pool serializes access per device.
type Handle interface {
	ID() string
	Push(ctx context.Context, local, remote string) error
	Pull(ctx context.Context, remote, local string) error
	Shell(ctx context.Context, cmd Command, timeout time.Duration) (ShellResult, error)
	Exists(ctx context.Context, path string) (bool, error)
	Mkdir(ctx context.Context, path string) error
	Remove(ctx context.Context, path string) error
	Info(ctx context.Context) (model.DeviceInfo, error)
}

// Quote wraps s in single quotes for a POSIX shell, escaping embedded
// quotes. This is the injection boundary for every remote path and argument.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// shellLine renders a Command into a single remote shell line. Every
// element, including Dir and Env values, goes through Quote.
func shellLine(cmd Command) string {
	var b strings.Builder
	if cmd.Dir != "" {
		b.WriteString("cd ")
		b.WriteString(Quote(cmd.Dir))
		b.WriteString(" && ")
	}
	for _, k := range slices.Sorted(maps.Keys(cmd.Env)) {
		b.WriteString("export ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(Quote(cmd.Env[k]))
		b.WriteString(" && ")
	}
	for i, a := range cmd.Argv {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(Quote(a))
	}
	return b.String()
}
