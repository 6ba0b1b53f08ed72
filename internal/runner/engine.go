// Copyright 2024 github.com/ucirello
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package runner

import (
	"bytes"
	"context"
	"time"
)

var defaultTable = NewProcessTable()

// resetTableForTest replaces the process-wide ProcessTable with an empty
// one. Test-only: production code never needs to reset supervised children.
func resetTableForTest() {
	defaultTable = NewProcessTable()
}

// daemonCtx is the context children are spawned against. It must live as
// long as the daemon itself, never just one request: exec.CommandContext
// kills the child (and, absent a Wait call, leaks its own watcher
// goroutine) the moment this context is done, so a per-request context
// here would SIGKILL every freshly spawned child right after its first
// reply. Canceling it is the intended way to tear every child down at
// daemon shutdown.
var daemonCtx context.Context = context.Background()

// SetDaemonContext installs the context RunCmd spawns children against.
// Call once during startup, before serving any request. Not safe to call
// concurrently with RunCmd.
func SetDaemonContext(ctx context.Context) { daemonCtx = ctx }

// Logger receives one event per RunCmd call, for operators correlating a
// slow front-end request with the underlying reuse/respawn decision. The
// zero value (nil) disables logging; the engine never requires one.
type Logger interface {
	LogRunCmd(name, outcome string, err error)
}

var activeLogger Logger

// SetLogger installs the hook RunCmd reports to. Passing nil disables
// logging. Not safe to call concurrently with RunCmd.
func SetLogger(l Logger) { activeLogger = l }

func logOutcome(name, outcome string, err error) {
	if activeLogger != nil {
		activeLogger.LogRunCmd(name, outcome, err)
	}
}

// RunCmd shapes input per the CommandSpec registered under name, ensures a
// healthy child is running for that name (reusing one or spawning a
// replacement), writes the shaped bytes to its stdin, and returns the bytes
// the child produces on stdout/stderr before a quiet period elapses.
//
// outputSize, if non-zero, overrides the spec's DefaultOutputCapacity for
// sizing this call's output accumulator; it does not cap total output. The
// child's pipe read buffers are fixed at pumpBufSize bytes and are not
// affected by either value.
func RunCmd(ctx context.Context, name, input string, outputSize int) ([]byte, error) {
	spec, err := Lookup(name)
	if err != nil {
		logOutcome(name, "error", err)
		return nil, err
	}

	slot := defaultTable.Acquire(name)
	defer slot.Unlock()

	child := slot.Get()
	outcome := "reused"
	switch {
	case child != nil && IsHealthy(child.PID()):
		// reuse path
	case child != nil:
		Terminate(ctx, child.PID(), child.terminate, spec.SignalWait)
		_ = child.Close()
		retiring := child
		go func() { _ = retiring.Wait() }()
		slot.Set(nil)
		child = nil
		fallthrough
	default:
		outcome = "respawned"
		newChild, err := spawn(daemonCtx, spec)
		if err != nil {
			logOutcome(name, "error", err)
			return nil, err
		}
		slot.Set(newChild)
		child = newChild
	}

	deadline := spec.OverallTimeout
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	out, err := interact(runCtx, child, input, spec, outputSize)
	if err != nil {
		logOutcome(name, "error", err)
		return nil, err
	}
	logOutcome(name, outcome, nil)
	return out, nil
}

// interact implements the child-interaction routine: drain stale bytes left
// over from a prior timed-out request, shape and write the new input, then
// multiplex the child's long-lived stdout/stderr pump channels against a
// quiet-period tick until the child goes silent or the context deadline
// fires. It never reads the child's stdout/stderr pipes itself — those are owned
// exclusively, for the child's whole lifetime, by the two pump goroutines
// started in spawn — so this request's reads can never race a previous
// request's abandoned reader.
func interact(ctx context.Context, child *RunningChild, input string, spec CommandSpec, outputSize int) ([]byte, error) {
	bufSize := spec.DefaultOutputCapacity
	if outputSize > 0 {
		bufSize = outputSize
	}

	drainStale(child)

	shaped, err := Shape(input, spec)
	if err != nil {
		return nil, err
	}

	if child.stdin == nil {
		return nil, ErrFailedToAttachStdin
	}

	if _, err := child.stdin.Write(shaped); err != nil {
		return nil, &IOError{Name: child.Name, Err: err}
	}

	var out bytes.Buffer
	out.Grow(bufSize)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var lastReadAt time.Time

	for {
		select {
		case <-ctx.Done():
			return nil, ErrTimeout
		case r := <-child.stdoutCh:
			if len(r.data) > 0 {
				out.Write(r.data)
				lastReadAt = time.Now()
			}
			if r.err != nil {
				return nil, &IOError{Name: child.Name, Err: r.err}
			}
		case r := <-child.stderrCh:
			if len(r.data) > 0 {
				out.Write(r.data)
				lastReadAt = time.Now()
			}
			if r.err != nil {
				return nil, &IOError{Name: child.Name, Err: r.err}
			}
		case <-ticker.C:
			if !lastReadAt.IsZero() && time.Since(lastReadAt) >= spec.QuietPeriod {
				return out.Bytes(), nil
			}
		}
	}
}

// staleDrainWindow bounds how long drainStale waits for a chunk that a pump
// goroutine was already in the middle of reading when the previous request
// gave up. It cannot catch output the child writes after this window, the
// same tie-break the quiet-period heuristic itself accepts; see
// SPEC_FULL.md §9.
const staleDrainWindow = 2 * time.Millisecond

// drainStale discards any chunk already sitting in (or about to land on) a
// child's stdout/stderr pump channels, left over from a previous request
// that timed out. It consumes from the channels the pump goroutines already
// own, rather than reading the pipe directly, so it never competes with
// those goroutines for the same bytes.
func drainStale(child *RunningChild) {
	drain := func(ch <-chan readChunk) {
		timer := time.NewTimer(staleDrainWindow)
		defer timer.Stop()
		for {
			select {
			case <-ch:
			case <-timer.C:
				return
			}
		}
	}
	drain(child.stdoutCh)
	drain(child.stderrCh)
}
