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
	"sync"

	"golang.org/x/sync/singleflight"
)

// Slot is a per-name entry in the ProcessTable, guarded by its own lock so
// that requests for unrelated command names never block each other. Only
// one goroutine holds a given Slot's lock at a time; acquiring the lock is
// the entire cross-request serialization point for one command name.
type Slot struct {
	mu    sync.Mutex
	child *RunningChild
}

// Get returns the currently-registered child for this slot, or nil.
func (s *Slot) Get() *RunningChild { return s.child }

// Set installs child as this slot's current occupant, replacing any
// previous one without closing it — callers close the old child
// themselves once they have decided to replace it.
func (s *Slot) Set(child *RunningChild) { s.child = child }

// Unlock releases the slot's lock. Callers must call Unlock exactly once
// after a successful Acquire.
func (s *Slot) Unlock() { s.mu.Unlock() }

// ProcessTable maps command name to the currently-supervised child. At most
// one Slot exists per name; a Slot, once created, lives for the process
// lifetime, so that its lock identity is stable across requests.
type ProcessTable struct {
	mapMu sync.Mutex
	slots map[string]*Slot

	group singleflight.Group
}

// NewProcessTable returns an empty ProcessTable.
func NewProcessTable() *ProcessTable {
	return &ProcessTable{slots: make(map[string]*Slot)}
}

// Acquire locks and returns the Slot for name, creating it if this is the
// first request ever made for that name. Slot creation for a brand-new name
// is collapsed through a singleflight.Group so that two concurrent first
// requests for the same name never race to create two distinct Slot
// values — they'd otherwise defeat the per-name locking invariant entirely.
// The returned Slot is already locked; callers must call Unlock when done.
func (t *ProcessTable) Acquire(name string) *Slot {
	v, _, _ := t.group.Do(name, func() (any, error) {
		t.mapMu.Lock()
		defer t.mapMu.Unlock()
		s, ok := t.slots[name]
		if !ok {
			s = &Slot{}
			t.slots[name] = s
		}
		return s, nil
	})
	slot := v.(*Slot)
	slot.mu.Lock()
	return slot
}

// Len reports how many names currently have a Slot (occupied or not). Used
// by tests to assert the single-entry-per-name invariant.
func (t *ProcessTable) Len() int {
	t.mapMu.Lock()
	defer t.mapMu.Unlock()
	return len(t.slots)
}
