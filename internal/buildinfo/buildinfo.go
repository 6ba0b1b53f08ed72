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

// Package buildinfo reports the VCS revision of the repository the daemon
// is running from, for operator-facing startup logs and the /version
// endpoint.
package buildinfo

import (
	"fmt"

	"github.com/go-git/go-git/v5"
)

// Info describes the daemon's current source revision.
type Info struct {
	Revision string
	Dirty    bool
}

// Unknown is returned by Read when dir is not (or is no longer) inside a
// git working tree — a packaged binary running outside any checkout, for
// instance.
var Unknown = Info{Revision: "unknown"}

// Read opens the git repository containing dir and reports its current
// HEAD revision and whether the working tree has uncommitted changes.
func Read(dir string) (Info, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Unknown, nil
	}

	head, err := repo.Head()
	if err != nil {
		return Unknown, fmt.Errorf("buildinfo: reading HEAD: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return Info{Revision: head.Hash().String()}, nil
	}
	status, err := wt.Status()
	if err != nil {
		return Info{Revision: head.Hash().String()}, nil
	}

	return Info{
		Revision: head.Hash().String(),
		Dirty:    !status.IsClean(),
	}, nil
}
