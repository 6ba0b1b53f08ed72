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
	"os/exec"
	"testing"
	"time"
)

func TestIsHealthyForRunningAndExitedProcess(t *testing.T) {
	cmd := exec.Command("sleep", "5")
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start sleep: %v", err)
	}
	pid := int32(cmd.Process.Pid)

	if !IsHealthy(pid) {
		t.Errorf("expected a freshly started process to be healthy")
	}

	if err := cmd.Process.Kill(); err != nil {
		t.Fatalf("failed to kill test process: %v", err)
	}
	_ = cmd.Wait()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && IsHealthy(pid) {
		time.Sleep(10 * time.Millisecond)
	}
	if IsHealthy(pid) {
		t.Errorf("expected a killed and reaped process to be unhealthy")
	}
}

func TestIsHealthyForUnknownPID(t *testing.T) {
	if IsHealthy(1<<30 + 7) {
		t.Errorf("expected an implausible PID to be reported unhealthy")
	}
	if IsHealthy(0) || IsHealthy(-1) {
		t.Errorf("expected non-positive PIDs to be reported unhealthy")
	}
}

func TestTerminateWaitsForExit(t *testing.T) {
	cmd := exec.Command("sleep", "5")
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start sleep: %v", err)
	}
	pid := int32(cmd.Process.Pid)

	Terminate(context.Background(), pid, func() error { return cmd.Process.Kill() }, time.Second)

	if IsHealthy(pid) {
		t.Errorf("expected process to be unhealthy after Terminate returns")
	}
	_ = cmd.Wait()
}
