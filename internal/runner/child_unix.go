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

//go:build !windows
// +build !windows

package runner

import (
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// command builds the exec.Cmd for a child, running it in its own process
// group so terminate can signal the whole group rather than only the
// direct child, matching the single-executable-no-args contract.
func command(ctx context.Context, executable string, signal Signal, signalWait time.Duration) (*exec.Cmd, func() error) {
	cmd := exec.CommandContext(ctx, executable)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	terminate := func() error {
		if cmd.Process == nil {
			return nil
		}
		osSignal := syscall.SIGKILL
		if signal == SignalTERM {
			osSignal = syscall.SIGTERM
		}
		pgid := -cmd.Process.Pid
		if err := syscall.Kill(pgid, osSignal); err != nil {
			return fmt.Errorf("cannot signal process group: %w", err)
		}
		return nil
	}
	return cmd, terminate
}
