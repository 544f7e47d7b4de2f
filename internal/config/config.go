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

package config

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/zkcircles/database/plugin"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "zkcircles.config"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

const (
	DefaultMetadataPlugin  = "sqlite"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRemoteTimeout   = 10 * time.Second
	DefaultBackendURL      = "http://localhost:3001"
	DefaultExplorerURL     = "https://api.explorer.aleo.org/v1/testnet"

	envPrefix = "zkcircles"
	dotEnv    = ".env"
)

type tempConfig struct {
	Config   yaml.Node                 `yaml:"config,omitempty"`
	Database *databaseConfig           `yaml:"database,omitempty"`
	Metadata map[string]map[string]any `yaml:"metadata,omitempty"`
}

type databaseConfig struct {
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

type Config struct {
	BindAddr          string        `yaml:"bindAddr"                                 split_words:"true"`
	Port              uint          `yaml:"port"              envconfig:"PORT"`
	MetricsPort       uint          `yaml:"metricsPort"                              split_words:"true"`
	MetadataPlugin    string        `yaml:"metadataPlugin"                           split_words:"true"`
	DatabasePath      string        `yaml:"databasePath"                             split_words:"true"`
	DatabaseURL       string        `yaml:"databaseUrl"       envconfig:"DATABASE_URL"`
	EncryptionKey     string        `yaml:"encryptionKey"     envconfig:"ENCRYPTION_KEY"`
	EncryptionKeyFile string        `yaml:"encryptionKeyFile" envconfig:"ENCRYPTION_KEY_FILE"`
	BackendURL        string        `yaml:"backendUrl"                               split_words:"true"`
	MirrorPath        string        `yaml:"mirrorPath"                               split_words:"true"`
	RemoteTimeout     time.Duration `yaml:"remoteTimeout"                            split_words:"true"`
	ExplorerURL       string        `yaml:"explorerUrl"                              split_words:"true"`
	CorsOrigins       []string      `yaml:"corsOrigins"                              split_words:"true"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"                          split_words:"true"`
	Tracing           bool          `yaml:"tracing"`
	TracingStdout     bool          `yaml:"tracingStdout"                            split_words:"true"`
	SeedData          bool          `yaml:"seedData"                                 split_words:"true"`
}

// ListenAddress is the address of the circle API listener
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.BindAddr, c.Port)
}

// MetricsAddress is the address of the metrics listener, empty when disabled
func (c *Config) MetricsAddress() string {
	if c.MetricsPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.BindAddr, c.MetricsPort)
}

func (c *Config) validate() error {
	if c.Port == 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.MetricsPort)
	}
	if c.RemoteTimeout <= 0 {
		return fmt.Errorf("invalid remote timeout: %s", c.RemoteTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", c.ShutdownTimeout)
	}
	if c.MetadataPlugin != DefaultMetadataPlugin && c.DatabaseURL == "" {
		return fmt.Errorf(
			"metadata plugin %q requires databaseUrl",
			c.MetadataPlugin,
		)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		BindAddr:        "0.0.0.0",
		Port:            3001,
		MetricsPort:     12799,
		MetadataPlugin:  DefaultMetadataPlugin,
		BackendURL:      DefaultBackendURL,
		RemoteTimeout:   DefaultRemoteTimeout,
		ExplorerURL:     DefaultExplorerURL,
		CorsOrigins:     []string{"*"},
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

var globalConfig = defaultConfig()

// findConfigFile returns the first config file found in the standard
// locations
func findConfigFile() string {
	// Check for config file in this path: ~/.zkcircles/zkcircles.yaml
	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, ".zkcircles", "zkcircles.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return userPath
		}
	}
	// Try to check for /etc/zkcircles/zkcircles.yaml if still not found
	systemPath := "/etc/zkcircles/zkcircles.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}
	return ""
}

// LoadConfig builds the config from defaults, then the config file, then the
// environment. A .env file in the working directory is applied to the
// environment first without overriding variables that are already set
func LoadConfig(configFile string) (*Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(dotEnv); err == nil {
		if err := godotenv.Load(dotEnv); err != nil {
			return nil, fmt.Errorf("error loading %s: %w", dotEnv, err)
		}
	}
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		if err := loadConfigFile(cfg, configFile); err != nil {
			return nil, err
		}
	}
	// Process environment variables
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}
	// Process plugin environment variables
	if err := plugin.ProcessEnvVars(); err != nil {
		return nil, fmt.Errorf(
			"error processing plugin environment variables: %w",
			err,
		)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	globalConfig = cfg
	return cfg, nil
}

func loadConfigFile(cfg *Config, configFile string) error {
	buf, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	// First unmarshal into temp config to handle plugin sections
	var tempCfg tempConfig
	if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	if !tempCfg.Config.IsZero() {
		// Overlay the config section onto existing defaults
		if err := tempCfg.Config.Decode(cfg); err != nil {
			return fmt.Errorf("error parsing config section: %w", err)
		}
	} else {
		// Otherwise unmarshal the whole file as main config
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Process plugin configurations
	metadataConfig := make(map[string]map[string]any)
	maps.Copy(metadataConfig, tempCfg.Metadata)
	if tempCfg.Database != nil && tempCfg.Database.Metadata != nil {
		// Extract plugin name if specified
		if pluginVal, ok := tempCfg.Database.Metadata["plugin"]; ok {
			pluginName, ok := pluginVal.(string)
			if !ok {
				return errors.New("database.metadata.plugin must be a string")
			}
			cfg.MetadataPlugin = pluginName
			delete(tempCfg.Database.Metadata, "plugin")
		}
		for k, v := range tempCfg.Database.Metadata {
			val, ok := stringMap(v)
			if !ok {
				fmt.Fprintf(
					os.Stderr,
					"warning: skipping metadata config entry %q: expected map, got %T\n",
					k,
					v,
				)
				continue
			}
			metadataConfig[k] = val
		}
	}
	if len(metadataConfig) > 0 {
		err := plugin.ProcessConfig(
			map[string]map[string]map[string]any{
				plugin.PluginTypeName(plugin.PluginTypeMetadata): metadataConfig,
			},
		)
		if err != nil {
			return fmt.Errorf("error processing plugin config: %w", err)
		}
	}
	return nil
}

// stringMap converts a decoded YAML mapping to map[string]any
func stringMap(v any) (map[string]any, bool) {
	switch val := v.(type) {
	case map[string]any:
		return val, true
	case map[any]any:
		ret := make(map[string]any, len(val))
		for vk, vv := range val {
			if keyStr, ok := vk.(string); ok {
				ret[keyStr] = vv
			}
		}
		return ret, true
	}
	return nil, false
}

func GetConfig() *Config {
	return globalConfig
}
