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
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
)

// pumpBufSize is the read buffer size for each child's two long-lived pipe
// readers. It is independent of a request's own output accumulator sizing.
const pumpBufSize = 4096

// readChunk is one delivery from a child's stdout/stderr pump goroutine: a
// copy of the bytes just read, or a terminal error (including io.EOF).
type readChunk struct {
	data []byte
	err  error
}

// RunningChild is a supervised interactive child process. It holds the name
// it was spawned under (re-resolved through the registry for its spec on
// every request, never an owned pointer — see DESIGN.md), the stdin pipe
// the Execution Engine writes to, and the two channels its stdout/stderr
// pump goroutines deliver output on. Those goroutines own the pipes
// exclusively for the child's whole lifetime, so no two readers ever race
// for the same bytes across requests.
type RunningChild struct {
	Name string
	cmd  *exec.Cmd

	stdin io.WriteCloser

	stdoutCh chan readChunk
	stderrCh chan readChunk

	pid int32

	// terminate sends this child's configured signal to its process
	// group. Platform-specific; see child_unix.go / child_windows.go.
	terminate func() error

	closeOnce sync.Once
	done      chan struct{}
}

// PID returns the OS process identifier of the spawned child.
func (c *RunningChild) PID() int32 { return c.pid }

// Wait blocks until the child's process has exited and been reaped. Callers
// terminate (or otherwise ensure the process is dying) before calling Wait;
// it does not itself signal the process.
func (c *RunningChild) Wait() error {
	return c.cmd.Wait()
}

// Close releases the child's stdin pipe and signals both pump goroutines to
// stop, unblocking any send they may be in the middle of. It does not wait
// for or kill the process; callers terminate (and eventually Wait) on their
// own.
func (c *RunningChild) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	if c.stdin != nil {
		return c.stdin.Close()
	}
	return nil
}

// pump reads from r in a loop, delivering a copy of each chunk (and the
// terminal error that ends the loop) on ch. It is the sole reader of r for
// the entire lifetime of the child: the Execution Engine never reads r
// directly, so stdout/stderr bytes are never raced over by two goroutines.
// A close of done unblocks an in-flight send immediately, so a retired
// child's pump never leaks even if nobody is left to receive from ch.
func pump(r io.Reader, ch chan<- readChunk, done <-chan struct{}) {
	buf := make([]byte, pumpBufSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case ch <- readChunk{data: chunk}:
			case <-done:
				return
			}
		}
		if err != nil {
			select {
			case ch <- readChunk{err: err}:
			case <-done:
			}
			return
		}
	}
}

// spawn launches spec.Executable with no arguments, piped stdin/stdout/
// stderr, in its own process group so Terminate can signal the whole group,
// and in the working directory / base environment materialized by
// internal/config. ctx should be a long-lived daemon context, never a
// per-request one — see SetDaemonContext.
func spawn(ctx context.Context, spec CommandSpec) (*RunningChild, error) {
	cmd, terminate := command(ctx, spec.Executable, spec.Signal, spec.SignalWait)
	cmd.Dir = spec.WorkDir
	if len(spec.BaseEnvironment) > 0 {
		cmd.Env = append(os.Environ(), spec.BaseEnvironment...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &IOError{Name: spec.Name, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &IOError{Name: spec.Name, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &IOError{Name: spec.Name, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &IOError{Name: spec.Name, Err: err}
	}

	child := &RunningChild{
		Name:      spec.Name,
		cmd:       cmd,
		stdin:     stdin,
		stdoutCh:  make(chan readChunk, 1),
		stderrCh:  make(chan readChunk, 1),
		pid:       int32(cmd.Process.Pid),
		terminate: terminate,
		done:      make(chan struct{}),
	}
	go pump(stdout, child.stdoutCh, child.done)
	go pump(stderr, child.stderrCh, child.done)

	return child, nil
}
