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

package metadata

import (
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/zkcircles/database/plugin"
	"gorm.io/gorm"
)

// MetadataStore is a relational store holding circle state
type MetadataStore interface {
	plugin.Plugin
	Close() error
	DB() *gorm.DB
	// SupportsRowLocks reports whether SELECT ... FOR UPDATE is honored.
	// Stores without row locks serialize writers on a single connection.
	SupportsRowLocks() bool
}

type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// New returns the started metadata plugin selected by name
func New(pluginName string, logger *slog.Logger) (MetadataStore, error) {
	p := plugin.GetPlugin(plugin.PluginTypeMetadata, pluginName)
	if p == nil {
		return nil, fmt.Errorf("metadata plugin '%s' not found", pluginName)
	}
	if ls, ok := p.(loggerSetter); ok && logger != nil {
		ls.SetLogger(logger)
	}
	if err := p.Start(); err != nil {
		return nil, fmt.Errorf(
			"failed to start metadata plugin '%s': %w",
			pluginName,
			err,
		)
	}
	metadataStore, ok := p.(MetadataStore)
	if !ok {
		_ = p.Stop()
		return nil, fmt.Errorf(
			"plugin '%s' does not implement MetadataStore interface",
			pluginName,
		)
	}
	return metadataStore, nil
}
