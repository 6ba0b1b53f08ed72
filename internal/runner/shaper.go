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
	"regexp"
	"strings"
)

var emptyLinePattern = regexp.MustCompile(`^[\s\t]+$`)
var allWhitespacePattern = regexp.MustCompile(`^[\s\n]+$`)

// Shape transforms caller-supplied input into the bytes written to a
// child's stdin, per spec. Steps run in this fixed order, each conditional
// on the CommandSpec: line truncation, empty-line removal, newline joining,
// trailing-newline insertion. RejectEmptyInput is checked last, against the
// fully-shaped result.
func Shape(input string, spec CommandSpec) ([]byte, error) {
	out := input

	if spec.TruncateLinePattern != nil {
		lines := strings.Split(out, "\n")
		for i, line := range lines {
			lines[i] = spec.TruncateLinePattern.ReplaceAllString(line, "")
		}
		out = strings.Join(lines, "\n")
	}

	if spec.RemoveEmptyLine {
		lines := strings.Split(out, "\n")
		kept := lines[:0]
		for _, line := range lines {
			if line == "" || emptyLinePattern.MatchString(line) {
				continue
			}
			kept = append(kept, line)
		}
		out = strings.Join(kept, "\n")
	}

	if spec.JoinNewlinesWith != nil {
		out = strings.ReplaceAll(out, "\n", *spec.JoinNewlinesWith)
	}

	if spec.AutoTrailingNewline {
		out += "\n"
	}

	if spec.RejectEmptyInput && (out == "" || allWhitespacePattern.MatchString(out)) {
		return nil, ErrEmptyInputNotAllowed
	}

	return []byte(out), nil
}
