// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import "sync"

// circleLocks hands out one mutex per circle id. Entries are dropped when
// the last holder releases them
type circleLocks struct {
	locks map[string]*circleLock
	mu    sync.Mutex
}

type circleLock struct {
	mu   sync.Mutex
	refs int
}

func newCircleLocks() *circleLocks {
	return &circleLocks{
		locks: make(map[string]*circleLock),
	}
}

// Lock blocks until the circle is free and returns the matching unlock func
func (l *circleLocks) Lock(circleID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[circleID]
	if !ok {
		lock = &circleLock{}
		l.locks[circleID] = lock
	}
	lock.refs++
	l.mu.Unlock()
	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, circleID)
		}
		l.mu.Unlock()
	}
}

func (l *circleLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
