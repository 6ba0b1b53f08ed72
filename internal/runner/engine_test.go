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
	"errors"
	"strings"
	"testing"
	"time"
)

func installTestTable(t *testing.T, specs ...CommandSpec) {
	t.Helper()
	resetForTest()
	resetTableForTest()
	t.Cleanup(func() {
		resetForTest()
		resetTableForTest()
	})
	if err := Install(NewCommandTable(specs...)); err != nil {
		t.Fatalf("installing test command table: %v", err)
	}
}

// TestRunCmdReusesHealthyChild is the S4 scenario: two sequential requests
// for the same name must share one OS PID.
func TestRunCmdReusesHealthyChild(t *testing.T) {
	installTestTable(t, CommandSpec{
		Name:                "echoer",
		Executable:          "cat",
		AutoTrailingNewline: true,
		QuietPeriod:         20 * time.Millisecond,
		OverallTimeout:      2 * time.Second,
	})

	ctx := context.Background()
	if _, err := RunCmd(ctx, "echoer", "first", 0); err != nil {
		t.Fatalf("first RunCmd: %v", err)
	}
	firstPID := defaultTable.Acquire("echoer")
	pid1 := firstPID.Get().PID()
	firstPID.Unlock()

	if _, err := RunCmd(ctx, "echoer", "second", 0); err != nil {
		t.Fatalf("second RunCmd: %v", err)
	}
	secondPID := defaultTable.Acquire("echoer")
	pid2 := secondPID.Get().PID()
	secondPID.Unlock()

	if pid1 != pid2 {
		t.Errorf("expected the same child PID to be reused, got %d then %d", pid1, pid2)
	}
	if defaultTable.Len() != 1 {
		t.Errorf("expected exactly one process table entry, got %d", defaultTable.Len())
	}
}

// TestRunCmdReplacesUnhealthyChild is the S5 scenario: after the child dies
// externally, the next request spawns a new PID and still succeeds.
func TestRunCmdReplacesUnhealthyChild(t *testing.T) {
	installTestTable(t, CommandSpec{
		Name:                "echoer",
		Executable:          "cat",
		AutoTrailingNewline: true,
		QuietPeriod:         20 * time.Millisecond,
		OverallTimeout:      2 * time.Second,
		SignalWait:          50 * time.Millisecond,
	})

	ctx := context.Background()
	if _, err := RunCmd(ctx, "echoer", "first", 0); err != nil {
		t.Fatalf("first RunCmd: %v", err)
	}

	slot := defaultTable.Acquire("echoer")
	child := slot.Get()
	oldPID := child.PID()
	_ = child.terminate()
	slot.Unlock()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && IsHealthy(oldPID) {
		time.Sleep(10 * time.Millisecond)
	}

	out, err := RunCmd(ctx, "echoer", "second", 0)
	if err != nil {
		t.Fatalf("RunCmd after external kill: %v", err)
	}
	if !strings.Contains(string(out), "second") {
		t.Errorf("expected echoed output to contain %q, got %q", "second", out)
	}

	slot = defaultTable.Acquire("echoer")
	newPID := slot.Get().PID()
	slot.Unlock()

	if newPID == oldPID {
		t.Errorf("expected a new PID after replacing the unhealthy child, got the same %d", oldPID)
	}
}

// TestRunCmdOverallTimeout is the S6 scenario: a child that never replies
// fails with ErrTimeout within roughly the configured deadline, and the
// slot remains usable afterward.
func TestRunCmdOverallTimeout(t *testing.T) {
	installTestTable(t, CommandSpec{
		Name:                "silent",
		Executable:          "sh",
		AutoTrailingNewline: true,
		QuietPeriod:         20 * time.Millisecond,
		OverallTimeout:      200 * time.Millisecond,
	})

	ctx := context.Background()
	start := time.Now()
	_, err := RunCmd(ctx, "silent", ": no output", 0)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed > time.Second {
		t.Errorf("expected timeout to fire near the configured deadline, took %s", elapsed)
	}

	out, err := RunCmd(ctx, "silent", "echo hi", 0)
	if err != nil {
		t.Fatalf("expected the slot to remain usable after a timeout, got: %v", err)
	}
	if !strings.Contains(string(out), "hi") {
		t.Errorf("expected echoed output to contain %q, got %q", "hi", out)
	}
}

func TestRunCmdUnknownCommand(t *testing.T) {
	installTestTable(t, CommandSpec{Name: "echoer", Executable: "cat"})

	if _, err := RunCmd(context.Background(), "nope", "x", 0); err == nil {
		t.Fatal("expected an error for an unregistered command name")
	}
}

func TestRunCmdRejectsEmptyInput(t *testing.T) {
	installTestTable(t, CommandSpec{
		Name:             "echoer",
		Executable:       "cat",
		RejectEmptyInput: true,
		QuietPeriod:      20 * time.Millisecond,
		OverallTimeout:   2 * time.Second,
	})

	if _, err := RunCmd(context.Background(), "echoer", "   \n  ", 0); !errors.Is(err, ErrEmptyInputNotAllowed) {
		t.Fatalf("expected ErrEmptyInputNotAllowed, got %v", err)
	}
}
