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
	"fmt"
)

// Sentinel errors returned by Install and RunCmd. ErrFailedToRegister is
// not returned by any current code path: storing a child in its Slot cannot
// fail.
var (
	ErrAlreadyInitialized   = errors.New("runner: command table already installed")
	ErrNotInitialized       = errors.New("runner: command table not installed")
	ErrEmptyInputNotAllowed = errors.New("runner: empty input not allowed for this command")
	ErrFailedToAttachStdin  = errors.New("runner: failed to attach child stdin")
	ErrFailedToRegister     = errors.New("runner: failed to register child in process table")
	ErrTimeout              = errors.New("runner: command timed out waiting for quiet output")
)

// CommandNotFoundError is returned by Lookup and RunCmd when a command name
// has no entry in the installed CommandTable.
type CommandNotFoundError struct {
	Name string
}

func (e *CommandNotFoundError) Error() string {
	return fmt.Sprintf("runner: command %q not found", e.Name)
}

// InvalidPatternError is returned when a CommandSpec's truncate-line pattern
// fails to compile.
type InvalidPatternError struct {
	Name    string
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("runner: command %q has invalid truncateLinePattern %q: %v", e.Name, e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error { return e.Err }

// IOError wraps a low-level pipe or process I/O failure encountered while
// serving a request.
type IOError struct {
	Name string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("runner: command %q: i/o error: %v", e.Name, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
