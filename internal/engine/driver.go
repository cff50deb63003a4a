/*
PURPOSE:
  Drives the expanded invocation matrix against the device pool: one worker
  per device, sequential invocations per device, retry/backoff/cooldown
  policy, and guaranteed per-invocation cleanup.

REQUIREMENTS:
  User-specified:
  - Every expanded spec yields exactly one ResultRecord, failures included.
  - Timeout and device-unreachable outcomes retry with exponential backoff
    up to max_attempts; process errors never retry.
  - Cooldown after every invocation on the same device.
  - Cancellation stops dispatch of not-yet-started invocations; in-flight
    invocations finish or hit their timeout.

  Implementation-discovered:
  - Files pushed for one invocation must come off the device on every exit
    path, cancellation included, so cleanup runs under a non-cancellable
    context with its own short deadline.
  - A device whose id is unknown (DeviceNotFound) fails only its own
    invocations; retrying it cannot help, so it breaks the attempt loop.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go
  - Uses: internal/device (pool + handles), internal/matrix, internal/parse

ERROR HANDLING:
  - No error escapes an invocation: every failure terminates in a
    classified ExecutionOutcome inside a ResultRecord.

IMPLEMENTATION RULES:
  - Workers block only on device I/O and the cooldown/backoff sleeps.
  - Per-invocation state machine: Pending → Preparing → Running →
    {Succeeded, Failed, TimedOut} → Recorded.
  - Constructor takes pool and logger explicitly; no package globals.

USAGE:
  d := engine.NewDriver(cfg, pool, logger)
  records := d.Run(ctx)

SELF-HEALING INSTRUCTIONS:
  - If a new outcome class is added, extend classify() and RunStatus
    together.

RELATED FILES:
  - internal/engine/command.go
  - internal/engine/aggregate.go
  - internal/device/pool.go

MAINTENANCE:
  - Keep the retry policy table in sync with RunStatus.Retryable.
*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/edge-bench/edge-runner/internal/config"
	"github.com/edge-bench/edge-runner/internal/device"
	"github.com/edge-bench/edge-runner/internal/matrix"
	"github.com/edge-bench/edge-runner/internal/model"
	"github.com/edge-bench/edge-runner/internal/parse"
)

// Resolver is the slice of the device pool the driver needs.
type Resolver interface {
	Resolve(ctx context.Context, id string) (device.Handle, model.DeviceInfo, error)
}

// Driver executes the run matrix.
type Driver struct {
	cfg  *config.Config
	pool Resolver
	log  *slog.Logger
}

// NewDriver builds a driver over an already validated configuration.
func NewDriver(cfg *config.Config, pool Resolver, log *slog.Logger) *Driver {
	return &Driver{cfg: cfg, pool: pool, log: log}
}

// deviceState is worker-local; a worker owns exactly one device.
type deviceState struct {
	id          string
	target      model.DeviceTarget
	handle      device.Handle
	info        model.DeviceInfo
	bundleReady bool
	tuned       bool
}

// Run executes every invocation of the matrix and returns the records in
// canonical expansion order. Cancellation yields a well-formed, possibly
// shorter, sequence.
func (d *Driver) Run(ctx context.Context) []model.ResultRecord {
	agg := newAggregator()

	ids := matrix.Devices(d.cfg)
	limit := d.cfg.Concurrency
	if limit <= 0 || limit > len(ids) {
		limit = len(ids)
	}
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			d.deviceWorker(ctx, id, agg)
		}(id)
	}
	wg.Wait()

	return agg.Records()
}

// deviceWorker walks the expansion lazily and runs the specs addressed to
// its device, strictly in order.
func (d *Driver) deviceWorker(ctx context.Context, id string, agg *aggregator) {
	target, _ := d.cfg.Device(id)
	st := &deviceState{id: id, target: target, info: model.DeviceInfo{ID: id}}

	for spec := range matrix.Expand(d.cfg) {
		if spec.DeviceID != id {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		rec := d.runInvocation(ctx, st, spec)
		agg.Add(rec)

		// Thermal settle time between runs on this device.
		if !sleepCtx(ctx, d.cfg.Cooldown.D()) {
			return
		}
	}
}

// runInvocation drives one spec through the attempt loop and always
// produces a record.
func (d *Driver) runInvocation(ctx context.Context, st *deviceState, spec model.InvocationSpec) model.ResultRecord {
	started := time.Now()
	log := d.log.With("device", st.id, "model", spec.Model.Name, "index", spec.Index)

	var outcome model.ExecutionOutcome
	metrics := model.MetricsRecord{ParseStatus: model.ParseFailed}

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		attemptStart := time.Now()
		res, err := d.attempt(ctx, st, spec)
		elapsed := time.Since(attemptStart)

		status, errMsg := classify(res, err)
		outcome.Status = status
		outcome.ExitCode = res.ExitCode
		outcome.Stdout = res.Stdout
		outcome.Stderr = res.Stderr
		outcome.Duration = elapsed
		outcome.Attempts = attempt
		outcome.Error = errMsg
		outcome.AttemptLog = append(outcome.AttemptLog, model.Attempt{
			Status:   status,
			Duration: elapsed,
			Error:    errMsg,
		})

		if status == model.StatusSucceeded {
			metrics = parse.Metrics(res.Stdout)
			if metrics.ParseStatus == model.ParseFailed {
				log.Warn("benchmark output unparseable", "attempt", attempt)
			}
			break
		}

		// Unknown device ids cannot become reachable by retrying.
		if errors.Is(err, device.ErrDeviceNotFound) {
			log.Error("device not configured, failing its invocations", "error", errMsg)
			break
		}
		if !status.Retryable() || attempt == d.cfg.MaxAttempts {
			log.Error("invocation failed", "status", status, "attempt", attempt, "error", errMsg)
			break
		}

		backoff := d.cfg.RetryBackoff.D() << (attempt - 1)
		log.Warn("transient failure, backing off", "status", status, "attempt", attempt, "backoff", backoff)
		if !sleepCtx(ctx, backoff) {
			break
		}
	}

	return model.ResultRecord{
		Spec:       spec,
		Outcome:    outcome,
		Metrics:    metrics,
		Device:     st.info,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
}

// attempt performs Preparing and Running for one try. Files it pushed are
// removed on every exit path.
func (d *Driver) attempt(ctx context.Context, st *deviceState, spec model.InvocationSpec) (device.ShellResult, error) {
	if st.handle == nil {
		h, info, err := d.pool.Resolve(ctx, st.id)
		if err != nil {
			return device.ShellResult{ExitCode: -1}, err
		}
		st.handle = h
		st.info = info
	}
	root := d.cfg.DeployRoot

	// Preparing
	var pushed []string
	defer func() {
		if len(pushed) == 0 {
			return
		}
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		for _, p := range pushed {
			if err := st.handle.Remove(cleanupCtx, p); err != nil {
				d.log.Warn("cleanup failed", "device", st.id, "path", p, "error", err)
			}
		}
	}()

	if !st.bundleReady {
		if err := d.deployBundle(ctx, st); err != nil {
			return device.ShellResult{ExitCode: -1}, err
		}
		st.bundleReady = true
	}
	d.tune(ctx, st)

	remote := remoteModelPath(root, spec.Model)
	resident, err := st.handle.Exists(ctx, remote)
	if err != nil {
		return device.ShellResult{ExitCode: -1}, err
	}
	if !resident {
		local := filepath.Join(d.cfg.BundleDir, filepath.FromSlash(spec.Model.Path))
		if err := st.handle.Push(ctx, local, remote); err != nil {
			return device.ShellResult{ExitCode: -1}, err
		}
		pushed = append(pushed, remote)
	}

	// Running
	return st.handle.Shell(ctx, benchmarkCommand(root, spec), d.cfg.RunTimeout.D())
}

// deployBundle puts the benchmark binary and its libraries under the deploy
// root, skipping files already resident.
func (d *Driver) deployBundle(ctx context.Context, st *deviceState) error {
	root := d.cfg.DeployRoot
	for _, dir := range []string{root, path.Join(root, "lib"), path.Join(root, "models")} {
		if err := st.handle.Mkdir(ctx, dir); err != nil {
			return err
		}
	}

	binLocal := filepath.Join(d.cfg.BundleDir, benchmarkBin)
	binRemote := path.Join(root, benchmarkBin)
	resident, err := st.handle.Exists(ctx, binRemote)
	if err != nil {
		return err
	}
	if !resident {
		if err := st.handle.Push(ctx, binLocal, binRemote); err != nil {
			return err
		}
		res, err := st.handle.Shell(ctx, device.Command{
			Argv: []string{"chmod", "755", binRemote},
		}, 15*time.Second)
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("chmod %s: %s", binRemote, strings.TrimSpace(res.Stderr))
		}
	}

	libDir := filepath.Join(d.cfg.BundleDir, "lib")
	entries, err := os.ReadDir(libDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // bundle ships no shared libraries
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		remote := path.Join(root, "lib", e.Name())
		resident, err := st.handle.Exists(ctx, remote)
		if err != nil {
			return err
		}
		if resident {
			continue
		}
		if err := st.handle.Push(ctx, filepath.Join(libDir, e.Name()), remote); err != nil {
			return err
		}
	}
	return nil
}

// tune issues best-effort device tuning once per device. Failures never
// escalate to invocation failures.
func (d *Driver) tune(ctx context.Context, st *deviceState) {
	if st.tuned || !d.cfg.TuneDevices || st.target.Kind != model.KindADB {
		st.tuned = true
		return
	}
	st.tuned = true
	for _, cmd := range tuneCommands() {
		res, err := st.handle.Shell(ctx, cmd, 15*time.Second)
		if err != nil || res.ExitCode != 0 {
			d.log.Warn("device tuning command failed", "device", st.id, "cmd", cmd.Argv[0], "error", err)
		}
	}
}

// classify maps an attempt's transport error and shell result onto the
// outcome taxonomy.
func classify(res device.ShellResult, err error) (model.RunStatus, string) {
	switch {
	case err == nil:
		if res.ExitCode != 0 || parse.ToolReportedError(res.Stdout, res.Stderr) {
			msg := parse.ErrorLine(res.Stdout, res.Stderr)
			if msg == "" {
				msg = fmt.Sprintf("tool exited with code %d", res.ExitCode)
			}
			return model.StatusProcessErr, msg
		}
		return model.StatusSucceeded, ""
	case errors.Is(err, device.ErrTimeout):
		return model.StatusTimedOut, err.Error()
	case errors.Is(err, device.ErrDeviceUnreachable), errors.Is(err, device.ErrDeviceNotFound):
		return model.StatusUnreachable, err.Error()
	default:
		// Preparing-stage failures (push, mkdir, chmod) are deterministic.
		return model.StatusProcessErr, err.Error()
	}
}

// sleepCtx sleeps for d unless the context ends first; returns false when
// cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
