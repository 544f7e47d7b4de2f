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

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/zkcircles/database/plugin"
	"github.com/blinklabs-io/zkcircles/database/plugin/metadata"
	"github.com/blinklabs-io/zkcircles/event"
	"github.com/blinklabs-io/zkcircles/fieldcodec"
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultMetadataPlugin = "sqlite"

// Config selects and configures the metadata store behind the gateway
type Config struct {
	Logger         *slog.Logger
	PromRegistry   prometheus.Registerer
	EventBus       *event.EventBus
	Codec          *fieldcodec.Codec
	MetadataPlugin string
	// DataDir is the sqlite data directory. Empty selects an in-memory store
	DataDir string
	// DatabaseURL is a DSN for the postgres and mysql plugins
	DatabaseURL string
	// MockData seeds example circles into an empty store
	MockData bool
}

// Database is the persistence gateway for circle state
type Database struct {
	logger   *slog.Logger
	metadata metadata.MetadataStore
	codec    *fieldcodec.Codec
	eventBus *event.EventBus
	metrics  *gatewayMetrics
	locks    *circleLocks
	now      func() time.Time
	mock     bool
}

// New starts the configured metadata plugin and returns a gateway over it
func New(cfg Config) (*Database, error) {
	if cfg.Codec == nil {
		return nil, errors.New("field codec is required")
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	pluginName := cfg.MetadataPlugin
	if pluginName == "" {
		pluginName = DefaultMetadataPlugin
	}
	if pluginName == DefaultMetadataPlugin {
		if err := plugin.SetPluginOption(
			plugin.PluginTypeMetadata,
			pluginName,
			"data-dir",
			cfg.DataDir,
		); err != nil {
			return nil, err
		}
	} else if cfg.DatabaseURL != "" {
		if err := plugin.SetPluginOption(
			plugin.PluginTypeMetadata,
			pluginName,
			"dsn",
			cfg.DatabaseURL,
		); err != nil {
			return nil, err
		}
	}
	metadataDb, err := metadata.New(pluginName, cfg.Logger)
	if err != nil {
		return nil, err
	}
	return NewWithStore(metadataDb, cfg)
}

// NewWithStore returns a gateway over an already started metadata store
func NewWithStore(store metadata.MetadataStore, cfg Config) (*Database, error) {
	if cfg.Codec == nil {
		return nil, errors.New("field codec is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	d := &Database{
		logger:   cfg.Logger,
		metadata: store,
		codec:    cfg.Codec,
		eventBus: cfg.EventBus,
		locks:    newCircleLocks(),
		now:      time.Now,
		mock:     cfg.MockData,
	}
	if cfg.PromRegistry != nil {
		d.metrics = newGatewayMetrics(cfg.PromRegistry)
	}
	if d.mock {
		if err := d.seedMockData(); err != nil {
			return nil, errors.Join(
				fmt.Errorf("seed mock data: %w", err),
				store.Close(),
			)
		}
	}
	return d, nil
}

// Mock reports whether the gateway serves seeded example data
func (d *Database) Mock() bool {
	return d.mock
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Metadata returns the underlying metadata store instance
func (d *Database) Metadata() metadata.MetadataStore {
	return d.metadata
}

// Close cleans up the database connections
func (d *Database) Close() error {
	return d.metadata.Close()
}

func (d *Database) publish(eventType event.EventType, data event.CircleEvent) {
	if d.eventBus == nil {
		return
	}
	d.eventBus.PublishAsync(event.NewEvent(eventType, data))
}

// nowMillis is the gateway clock used to stamp the start of a circle
func (d *Database) nowMillis() uint64 {
	return uint64(d.now().UnixMilli()) // #nosec G115
}
