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

package config

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ucirello-labs/replmuxd/internal/runner"
)

func TestLoad(t *testing.T) {
	cfg, err := Load("_testdata/replmux.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.WorkDir != "/srv/replmux" {
		t.Errorf("unexpected workdir: %q", cfg.WorkDir)
	}

	wantEnv := []string{"PYTHONUNBUFFERED=1", "JULIA_NUM_THREADS=4"}
	if diff := cmp.Diff(wantEnv, cfg.BaseEnvironment); diff != "" {
		t.Errorf("BaseEnvironment mismatch (-want +got):\n%s", diff)
	}

	sort.Slice(cfg.Commands, func(i, j int) bool { return cfg.Commands[i].Name < cfg.Commands[j].Name })
	if len(cfg.Commands) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cfg.Commands))
	}

	join := ";"
	want := []runner.CommandSpec{
		{
			Name:                "julia",
			Executable:          "julia",
			AutoTrailingNewline: true,
			JoinNewlinesWith:    &join,
			QuietPeriod:         150 * time.Millisecond,
			OverallTimeout:      30 * time.Second,
		},
		{
			Name:                "python",
			Executable:          "python3",
			AutoTrailingNewline: true,
			RemoveEmptyLine:     true,
		},
	}

	opts := cmp.Options{cmpopts.IgnoreFields(runner.CommandSpec{}, "TruncateLinePattern")}
	if diff := cmp.Diff(want, cfg.Commands, opts...); diff != "" {
		t.Errorf("Commands mismatch (-want +got):\n%s", diff)
	}
	if cfg.Commands[1].TruncateLinePattern == nil || cfg.Commands[1].TruncateLinePattern.String() != "#.*" {
		t.Errorf("expected python's truncate pattern to be %q, got %v", "#.*", cfg.Commands[1].TruncateLinePattern)
	}
}

func TestLoadRejectsMissingExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, "commands:\n  broken:\n    autoTrailingNewline: true\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a command missing its executable")
	}
}

func TestLoadRejectsInvalidPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, "commands:\n  broken:\n    executable: cat\n    truncateLinePattern: \"(unterminated\"\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an error for an invalid truncateLinePattern")
	}
	var invalid *runner.InvalidPatternError
	if !errors.As(err, &invalid) {
		t.Errorf("expected *runner.InvalidPatternError, got %T: %v", err, err)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
}
