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
	"errors"
	"testing"
)

func TestLookupBeforeInstall(t *testing.T) {
	resetForTest()
	if _, err := Lookup("julia"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestInstallAndLookup(t *testing.T) {
	resetForTest()
	defer resetForTest()

	table := NewCommandTable(CommandSpec{Name: "julia", Executable: "julia"})
	if err := Install(table); err != nil {
		t.Fatalf("unexpected error installing table: %v", err)
	}

	spec, err := Lookup("julia")
	if err != nil {
		t.Fatalf("unexpected error looking up installed command: %v", err)
	}
	if spec.Executable != "julia" {
		t.Errorf("expected executable %q, got %q", "julia", spec.Executable)
	}
	if spec.OverallTimeout != DefaultOverallTimeout {
		t.Errorf("expected default overall timeout to be applied, got %v", spec.OverallTimeout)
	}
	if spec.QuietPeriod != DefaultQuietPeriod {
		t.Errorf("expected default quiet period to be applied, got %v", spec.QuietPeriod)
	}

	if _, err := Lookup("python"); err == nil {
		t.Fatal("expected error looking up an unregistered command")
	} else {
		var notFound *CommandNotFoundError
		if !errors.As(err, &notFound) {
			t.Errorf("expected *CommandNotFoundError, got %T: %v", err, err)
		}
	}
}

func TestInstallTwiceFails(t *testing.T) {
	resetForTest()
	defer resetForTest()

	table := NewCommandTable(CommandSpec{Name: "julia", Executable: "julia"})
	if err := Install(table); err != nil {
		t.Fatalf("unexpected error on first install: %v", err)
	}
	if err := Install(table); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized on reinstall, got %v", err)
	}
}
