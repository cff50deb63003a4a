/*
PURPOSE:
  Maps configured device identifiers to lazily constructed, probed Handles
  and serializes access so one physical target never sees interleaved
  command streams.

REQUIREMENTS:
  User-specified:
  - Resolve(id) fails ErrDeviceNotFound for unconfigured ids and
    ErrDeviceUnreachable when the connectivity probe fails.
  - At most one in-flight operation per device id; distinct devices are
    fully independent.

  Implementation-discovered:
  - The probe result (DeviceInfo) is worth caching: it is the snapshot
    attached to every ResultRecord for that device.

ARCHITECTURE INTEGRATION:
  - Constructed by: internal/engine, internal/cli/list_devices.go
  - Uses: internal/device handles.

ERROR HANDLING:
  - No reconnection or retry of its own; callers own retry policy.

IMPLEMENTATION RULES:
  - Handles returned by Resolve are wrapped so every operation takes the
    per-device lock.
  - Constructor takes an explicit logger; no package globals.

USAGE:
  pool := device.NewPool(cfg.Devices, logger)
  h, info, err := pool.Resolve(ctx, "RF8M33XYZ")

SELF-HEALING INSTRUCTIONS:
  - A failed probe is not cached; the next Resolve probes again.

RELATED FILES:
  - internal/device/device.go
  - internal/engine/driver.go

MAINTENANCE:
  - Update NewPool's kind switch when adding a target kind.
*/

package device

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/edge-bench/edge-runner/internal/model"
)

// Pool holds one lazily constructed handle per configured target id.
type Pool struct {
	log *slog.Logger

	// construct builds a handle for a target; swapped out in tests.
	construct func(model.DeviceTarget) (Handle, error)

	mu      sync.Mutex
	entries map[string]*poolEntry
}

type poolEntry struct {
	target model.DeviceTarget

	// opMu serializes operations against this one physical device.
	opMu   sync.Mutex
	handle Handle
	info   model.DeviceInfo
	probed bool
}

// NewPool indexes the configured targets. No connections are opened until
// Resolve.
func NewPool(targets []model.DeviceTarget, log *slog.Logger) *Pool {
	entries := make(map[string]*poolEntry, len(targets))
	for _, t := range targets {
		entries[t.ID] = &poolEntry{target: t}
	}
	return &Pool{log: log, construct: constructHandle, entries: entries}
}

// Resolve returns a serialized handle for id plus the probed device info.
func (p *Pool) Resolve(ctx context.Context, id string) (Handle, model.DeviceInfo, error) {
	p.mu.Lock()
	e, ok := p.entries[id]
	p.mu.Unlock()
	if !ok {
		return nil, model.DeviceInfo{}, fmt.Errorf("device %q: %w", id, ErrDeviceNotFound)
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.handle == nil {
		h, err := p.construct(e.target)
		if err != nil {
			return nil, model.DeviceInfo{}, err
		}
		e.handle = h
	}

	if !e.probed {
		info, err := e.handle.Info(ctx)
		if err != nil {
			p.log.Warn("device probe failed", "device", id, "error", err)
			return nil, model.DeviceInfo{}, fmt.Errorf("probe device %q: %w", id, err)
		}
		e.info = info
		e.probed = true
		p.log.Info("device reachable", "device", id, "model", info.Model, "abi", info.ABI)
	}

	return &lockedHandle{entry: e}, e.info, nil
}

func constructHandle(target model.DeviceTarget) (Handle, error) {
	switch target.Kind {
	case model.KindADB:
		return NewADB(target.ID), nil
	case model.KindSSH:
		return NewSSH(target)
	default:
		return nil, fmt.Errorf("device %q: unknown kind %q", target.ID, target.Kind)
	}
}

// Close releases every constructed handle that holds a live connection
// (the ssh client keeps one open; adb does not). The pool stays usable:
// a later Resolve reconstructs and re-probes.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, e := range p.entries {
		e.opMu.Lock()
		if c, ok := e.handle.(io.Closer); ok {
			if err := c.Close(); err != nil {
				p.log.Warn("device handle close failed", "device", id, "error", err)
			}
		}
		e.handle = nil
		e.probed = false
		e.opMu.Unlock()
	}
}

// IDs returns the configured device ids.
func (p *Pool) IDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.entries))
	for id := range p.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// lockedHandle holds the per-device lock across each single operation.
type lockedHandle struct {
	entry *poolEntry
}

func (l *lockedHandle) ID() string { return l.entry.target.ID }

func (l *lockedHandle) Push(ctx context.Context, local, remote string) error {
	l.entry.opMu.Lock()
	defer l.entry.opMu.Unlock()
	return l.entry.handle.Push(ctx, local, remote)
}

func (l *lockedHandle) Pull(ctx context.Context, remote, local string) error {
	l.entry.opMu.Lock()
	defer l.entry.opMu.Unlock()
	return l.entry.handle.Pull(ctx, remote, local)
}

func (l *lockedHandle) Shell(ctx context.Context, cmd Command, timeout time.Duration) (ShellResult, error) {
	l.entry.opMu.Lock()
	defer l.entry.opMu.Unlock()
	return l.entry.handle.Shell(ctx, cmd, timeout)
}

func (l *lockedHandle) Exists(ctx context.Context, path string) (bool, error) {
	l.entry.opMu.Lock()
	defer l.entry.opMu.Unlock()
	return l.entry.handle.Exists(ctx, path)
}

func (l *lockedHandle) Mkdir(ctx context.Context, path string) error {
	l.entry.opMu.Lock()
	defer l.entry.opMu.Unlock()
	return l.entry.handle.Mkdir(ctx, path)
}

func (l *lockedHandle) Remove(ctx context.Context, path string) error {
	l.entry.opMu.Lock()
	defer l.entry.opMu.Unlock()
	return l.entry.handle.Remove(ctx, path)
}

func (l *lockedHandle) Info(ctx context.Context) (model.DeviceInfo, error) {
	l.entry.opMu.Lock()
	defer l.entry.opMu.Unlock()
	return l.entry.handle.Info(ctx)
}
