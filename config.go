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

package zkcircles

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/zkcircles/database"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	promRegistry      prometheus.Registerer
	logger            *slog.Logger
	dataDir           string
	metadataPlugin    string
	databaseURL       string
	encryptionKey     string
	encryptionKeyFile string
	listenAddress     string
	corsOrigins       []string
	tracing           bool
	tracingStdout     bool
	shutdownTimeout   time.Duration
}

// mockMode reports whether no persistent store is configured
func (c *Config) mockMode() bool {
	plugin := c.metadataPlugin
	if plugin == "" {
		plugin = database.DefaultMetadataPlugin
	}
	if plugin == database.DefaultMetadataPlugin {
		return c.dataDir == ""
	}
	return c.databaseURL == ""
}

func (n *Node) configValidate() error {
	if n.config.listenAddress == "" {
		return errors.New("no listen address defined")
	}
	if n.config.metadataPlugin != "" &&
		n.config.metadataPlugin != database.DefaultMetadataPlugin &&
		n.config.databaseURL == "" {
		return fmt.Errorf(
			"metadata plugin %q requires a database URL",
			n.config.metadataPlugin,
		)
	}
	if n.config.shutdownTimeout < 0 {
		return fmt.Errorf(
			"invalid shutdown timeout: %s",
			n.config.shutdownTimeout,
		)
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new node config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:        slog.New(slog.NewJSONHandler(io.Discard, nil)),
		listenAddress: ":3001",
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDatabasePath specifies the sqlite data directory. An empty path keeps the
// store in memory and seeds it with example circles
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithMetadataPlugin selects the metadata store plugin
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithDatabaseURL specifies the DSN for the postgres and mysql plugins
func WithDatabaseURL(url string) ConfigOptionFunc {
	return func(c *Config) {
		c.databaseURL = url
	}
}

// WithEncryptionKey specifies the field encryption key as hex or 32 raw bytes
func WithEncryptionKey(key string) ConfigOptionFunc {
	return func(c *Config) {
		c.encryptionKey = key
	}
}

// WithEncryptionKeyFile specifies a file holding the field encryption key. It
// takes precedence over WithEncryptionKey
func WithEncryptionKeyFile(path string) ConfigOptionFunc {
	return func(c *Config) {
		c.encryptionKeyFile = path
	}
}

// WithLogger specifies the logger to use
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithListenAddress specifies the address of the circle API listener
func WithListenAddress(address string) ConfigOptionFunc {
	return func(c *Config) {
		c.listenAddress = address
	}
}

// WithCorsOrigins specifies the origins allowed to call the circle API
func WithCorsOrigins(origins ...string) ConfigOptionFunc {
	return func(c *Config) {
		c.corsOrigins = origins
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
