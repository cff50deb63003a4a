package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// fakeADB puts a stand-in adb script on PATH that writes the given stderr
// and exits with code. Shell-level tests run against it instead of a real
// bridge.
func fakeADB(t *testing.T, stderr string, code int) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}
	dir := t.TempDir()
	script := fmt.Sprintf("#!/bin/sh\nprintf '%%s\\n' %q >&2\nexit %d\n", stderr, code)
	if err := os.WriteFile(filepath.Join(dir, "adb"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestADBShellRemoteNotFoundIsPlainResult(t *testing.T) {
	// A missing remote binary is a deterministic command failure. The shell
	// forwards its stderr and exit code through adb; that must surface as a
	// ShellResult, never as an unreachable device.
	fakeADB(t, "sh: ./benchmark_app: not found", 127)

	h := NewADB("serial-a")
	res, err := h.Shell(context.Background(), Command{Argv: []string{"./benchmark_app"}}, 5*time.Second)
	if err != nil {
		t.Fatalf("Shell returned error %v, want plain result", err)
	}
	if res.ExitCode != 127 {
		t.Fatalf("ExitCode = %d, want 127", res.ExitCode)
	}
}

func TestADBShellClientDiagnosticsAreUnreachable(t *testing.T) {
	cases := []struct {
		name   string
		stderr string
	}{
		{"device not found", "error: device 'serial-a' not found"},
		{"device offline", "error: device offline"},
		{"no devices", "adb: no devices/emulators found"},
	}
	for _, tc := range cases {
		fakeADB(t, tc.stderr, 1)
		h := NewADB("serial-a")
		_, err := h.Shell(context.Background(), Command{Argv: []string{"true"}}, 5*time.Second)
		if !errors.Is(err, ErrDeviceUnreachable) {
			t.Fatalf("%s: Shell = %v, want ErrDeviceUnreachable", tc.name, err)
		}
	}
}

func TestClientError(t *testing.T) {
	cases := []struct {
		stderr string
		match  bool
	}{
		{"error: device 'serial-a' not found", true},
		{"adb: device 'serial-a' not found", true},
		{"error: device offline", true},
		{"adb: no devices/emulators found", true},
		{"sh: ./benchmark_app: not found", false},
		{"sh: 1: cd: can't cd to /gone: No such file or directory", false},
		{"cat: /data/local/tmp/missing: No such file or directory", false},
		{"", false},
	}
	for _, tc := range cases {
		got := clientError(tc.stderr)
		if (got != "") != tc.match {
			t.Fatalf("clientError(%q) = %q, want match=%v", tc.stderr, got, tc.match)
		}
	}
}
