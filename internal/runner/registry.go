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

// Package runner implements a supervisor for long-lived, interactive child
// processes. Each named command keeps at most one child alive across many
// requests; a request shapes its input, writes it to the child's stdin, and
// waits for a quiet period on the child's stdout/stderr before returning the
// accumulated bytes.
package runner

import (
	"regexp"
	"sync"
	"time"
)

// Signal identifies which OS signal a child's terminate function sends to
// its process group when the child is replaced. On Windows, SignalTERM sends
// an interrupt and then kills the process after SignalWait.
type Signal int

const (
	// SignalKILL forces immediate termination. It is the zero value, so a
	// spec that does not set Signal is killed.
	SignalKILL Signal = iota
	// SignalTERM asks the child to shut down gracefully.
	SignalTERM
)

// Default policy values applied when a CommandSpec does not set the field
// explicitly. QuietPeriod resolves an open question in favor of a
// millisecond-scale default: see DESIGN.md.
const (
	DefaultOutputCapacity = 4096
	DefaultOverallTimeout = 30 * time.Second
	DefaultQuietPeriod    = 2 * time.Millisecond
	DefaultSignalWait     = 2 * time.Second
)

// CommandSpec declares the policy for one named interactive command: which
// executable to spawn, how to shape caller input before writing it to the
// child's stdin, and the timing thresholds that govern a request's lifetime.
type CommandSpec struct {
	// Name is the key callers use to address this command; also the key
	// under which its child is tracked in the ProcessTable.
	Name string
	// Executable is the program spawned with no arguments, piped
	// stdin/stdout/stderr.
	Executable string

	// WorkDir is the working directory the child is spawned in. Empty
	// means the daemon's own working directory. Materialized from the
	// daemon-wide configuration by internal/config, not set per command
	// in the config file.
	WorkDir string
	// BaseEnvironment, if non-empty, replaces the child's inherited
	// environment with os.Environ() plus these entries. Materialized
	// from internal/config's envfile overlay, not set per command.
	BaseEnvironment []string

	// DefaultOutputCapacity sizes the initial output accumulator buffer.
	DefaultOutputCapacity int

	// AutoTrailingNewline appends a single '\n' after all other shaping
	// steps, before the RejectEmptyInput check.
	AutoTrailingNewline bool
	// JoinNewlinesWith, if non-nil, replaces every '\n' in the input with
	// this string after empty-line removal and before the trailing
	// newline is appended. This intentionally discards trailing-newline
	// information already present in the caller's input; see DESIGN.md.
	JoinNewlinesWith *string
	// TruncateLinePattern, if set, is applied per line: every match is
	// replaced with the empty string. Compiled once when the spec is
	// constructed; a spec that fails to compile is rejected at
	// construction time, never at request time.
	TruncateLinePattern *regexp.Regexp
	// RemoveEmptyLine drops lines that are empty or all whitespace.
	RemoveEmptyLine bool
	// RejectEmptyInput rejects a request whose fully-shaped input is
	// empty or all whitespace/newlines.
	RejectEmptyInput bool

	// OverallTimeout bounds one request's total wait for a quiet period.
	OverallTimeout time.Duration
	// QuietPeriod is the span of silence on stdout+stderr after which a
	// request is considered complete.
	QuietPeriod time.Duration
	// Signal is sent to the child's process group when it is replaced.
	Signal Signal
	// SignalWait bounds how long Terminate waits for the child to exit
	// after signaling it.
	SignalWait time.Duration
}

// withDefaults returns a copy of s with zero-valued timing fields replaced
// by their package defaults.
func (s CommandSpec) withDefaults() CommandSpec {
	if s.DefaultOutputCapacity == 0 {
		s.DefaultOutputCapacity = DefaultOutputCapacity
	}
	if s.OverallTimeout == 0 {
		s.OverallTimeout = DefaultOverallTimeout
	}
	if s.QuietPeriod == 0 {
		s.QuietPeriod = DefaultQuietPeriod
	}
	if s.SignalWait == 0 {
		s.SignalWait = DefaultSignalWait
	}
	return s
}

// CommandTable is an immutable, process-wide mapping from command name to
// its CommandSpec. Build one with NewCommandTable and install it once with
// Install.
type CommandTable struct {
	specs map[string]CommandSpec
}

// NewCommandTable builds a CommandTable from specs, applying default timing
// values to any spec that omits them.
func NewCommandTable(specs ...CommandSpec) *CommandTable {
	t := &CommandTable{specs: make(map[string]CommandSpec, len(specs))}
	for _, s := range specs {
		t.specs[s.Name] = s.withDefaults()
	}
	return t
}

var (
	registryMu    sync.RWMutex
	registryTable *CommandTable
)

// Install sets the process-wide command table. It may be called exactly
// once; subsequent calls return ErrAlreadyInitialized.
func Install(table *CommandTable) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if registryTable != nil {
		return ErrAlreadyInitialized
	}
	registryTable = table
	return nil
}

// Lookup returns the CommandSpec registered under name, or
// ErrNotInitialized if Install has not run yet, or a *CommandNotFoundError
// if name has no entry.
func Lookup(name string) (CommandSpec, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if registryTable == nil {
		return CommandSpec{}, ErrNotInitialized
	}
	spec, ok := registryTable.specs[name]
	if !ok {
		return CommandSpec{}, &CommandNotFoundError{Name: name}
	}
	return spec, nil
}

// resetForTest clears the installed table. Test-only.
func resetForTest() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registryTable = nil
}
