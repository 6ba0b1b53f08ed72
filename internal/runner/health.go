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
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// healthyStatuses are the gopsutil process.Status() values this probe
// considers runnable: running, sleeping, and idle. Every other status,
// including zombie and stopped, is considered unhealthy. gopsutil reports a
// traced process as process.Stop, so traced processes are unhealthy too; the
// "T" entry matches only a raw status letter, which gopsutil does not return.
var healthyStatuses = map[string]bool{
	process.Running: true,
	process.Sleep:   true,
	process.Idle:    true,
	"T":             true,
}

// IsHealthy reports whether the OS process identified by pid is in a
// runnable/sleeping/idle state. It observes the OS directly, not an
// exec.Cmd's own ProcessState, so it also catches zombies whose handle has
// not been reaped by this process.
func IsHealthy(pid int32) bool {
	if pid <= 0 {
		return false
	}
	p, err := process.NewProcess(pid)
	if err != nil {
		return false
	}
	statuses, err := p.Status()
	if err != nil || len(statuses) == 0 {
		return false
	}
	for _, s := range statuses {
		if healthyStatuses[s] {
			return true
		}
	}
	return false
}

// Terminate calls terminate (a child's own function that signals its
// process group) and then waits up to wait for pid to stop reporting a
// healthy status. Errors are swallowed: the caller's recovery is
// always a respawn, not a retried terminate. A bounded wait keeps this
// daemon from piling up zombies of its own, unlike a fire-and-forget kill.
func Terminate(ctx context.Context, pid int32, terminate func() error, wait time.Duration) {
	if terminate != nil {
		_ = terminate()
	}
	if wait <= 0 {
		return
	}
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !IsHealthy(pid) {
				return
			}
		}
	}
}
