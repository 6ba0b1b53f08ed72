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

//go:build windows
// +build windows

package runner

import (
	"context"
	"os"
	"os/exec"
	"time"
)

// command builds the exec.Cmd for a child. Windows has no process-group
// signaling equivalent to SIGTERM/SIGKILL to a pgid, so terminate escalates
// straight from an interrupt attempt to Process.Kill.
func command(ctx context.Context, executable string, signal Signal, signalWait time.Duration) (*exec.Cmd, func() error) {
	cmd := exec.CommandContext(ctx, executable)

	terminate := func() error {
		if cmd.Process == nil {
			return nil
		}
		if signal == SignalTERM {
			_ = cmd.Process.Signal(os.Interrupt)
			if signalWait > 0 {
				time.Sleep(signalWait)
			}
		}
		return cmd.Process.Kill()
	}
	return cmd, terminate
}
