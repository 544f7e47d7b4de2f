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

package mirror

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// StorageKey namespaces the mirror blob
const StorageKey = "zkcircles_local_data"

// Store persists the serialized mirror. Load returns nil data when nothing
// has been saved yet
type Store interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

// Mirror is the client-side cache of circle state. It is never
// authoritative: any successful remote read overwrites what it holds
type Mirror struct {
	store  Store
	logger *slog.Logger
	mu     sync.Mutex
}

func New(store Store, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Mirror{
		store:  store,
		logger: logger,
	}
}

// Load returns the mirrored state. Missing or unreadable data yields an
// empty state
func (m *Mirror) Load() *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

func (m *Mirror) load() *State {
	data, err := m.store.Load()
	if err != nil {
		m.logger.Warn(
			"failed to read local mirror, starting empty",
			"component", "mirror",
			"error", err,
		)
		return NewState()
	}
	if len(data) == 0 {
		return NewState()
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		m.logger.Warn(
			"local mirror is corrupt, starting empty",
			"component", "mirror",
			"error", err,
		)
		return NewState()
	}
	s.normalize()
	return &s
}

// Save replaces the mirrored state
func (m *Mirror) Save(s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(s)
}

func (m *Mirror) save(s *State) error {
	s.normalize()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode local mirror: %w", err)
	}
	if err := m.store.Save(data); err != nil {
		return fmt.Errorf("write local mirror: %w", err)
	}
	return nil
}

// Update runs a load-modify-save cycle. No other update can interleave.
// Nothing is saved when fn returns an error
func (m *Mirror) Update(fn func(*State) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.load()
	if err := fn(s); err != nil {
		return err
	}
	return m.save(s)
}

// Close closes the underlying store when it supports it
func (m *Mirror) Close() error {
	if c, ok := m.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
