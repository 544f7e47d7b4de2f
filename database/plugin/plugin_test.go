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

package plugin_test

import (
	"strings"
	"testing"

	"github.com/blinklabs-io/zkcircles/database/plugin"
	_ "github.com/blinklabs-io/zkcircles/database/plugin/blob/badger"
	_ "github.com/blinklabs-io/zkcircles/database/plugin/metadata/sqlite"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NOTE: these tests mutate global plugin state and must not run in parallel

func TestSetPluginOption(t *testing.T) {
	// Empty data dir selects the in-memory sqlite store
	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeMetadata, "sqlite", "data-dir", ""))
	// Setting with wrong type should return an error
	require.Error(t, plugin.SetPluginOption(plugin.PluginTypeMetadata, "sqlite", "data-dir", 123))
	// Unknown options are ignored
	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeMetadata, "sqlite", "does-not-exist", "x"))

	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeBlob, "badger", "data-dir", t.TempDir()))
	require.Error(t, plugin.SetPluginOption(plugin.PluginTypeBlob, "badger", "data-dir", true))
	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeBlob, "badger", "data-dir", ""))

	require.Error(t, plugin.SetPluginOption(plugin.PluginTypeMetadata, "nonexistent", "data-dir", t.TempDir()))
}

type mockOptions struct {
	host    string
	port    uint64
	retries int
	tls     bool
}

func registerOptionsMock(t *testing.T, name string) *mockOptions {
	t.Helper()
	opts := &mockOptions{}
	registerMock(
		plugin.PluginTypeMetadata,
		name,
		plugin.PluginOption{Name: "host", Type: plugin.PluginOptionTypeString, DefaultValue: "localhost", Dest: &opts.host},
		plugin.PluginOption{Name: "port", Type: plugin.PluginOptionTypeUint, DefaultValue: uint64(5432), Dest: &opts.port},
		plugin.PluginOption{Name: "max-retries", Type: plugin.PluginOptionTypeInt, Dest: &opts.retries},
		plugin.PluginOption{Name: "tls", Type: plugin.PluginOptionTypeBool, Dest: &opts.tls, CustomEnvVar: strings.ToUpper(name) + "_TLS"},
	)
	return opts
}

func TestPluginOptionSources(t *testing.T) {
	opts := registerOptionsMock(t, "optmock")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, plugin.PopulateCmdlineOptions(fs))
	assert.Equal(t, "localhost", opts.host)
	assert.Equal(t, uint64(5432), opts.port)
	require.NoError(t, fs.Parse([]string{"--metadata-optmock-host=db.internal"}))
	assert.Equal(t, "db.internal", opts.host)

	err := plugin.ProcessConfig(map[string]map[string]map[string]any{
		"metadata": {
			"optmock": {"port": 6543, "max-retries": 3},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(6543), opts.port)
	assert.Equal(t, 3, opts.retries)

	t.Setenv("ZKCIRCLES_METADATA_OPTMOCK_HOST", "env.internal")
	t.Setenv("OPTMOCK_TLS", "true")
	require.NoError(t, plugin.ProcessEnvVars())
	assert.Equal(t, "env.internal", opts.host)
	assert.True(t, opts.tls)

	t.Setenv("ZKCIRCLES_METADATA_OPTMOCK_PORT", "not-a-number")
	require.ErrorContains(t, plugin.ProcessEnvVars(), "ZKCIRCLES_METADATA_OPTMOCK_PORT")
}

func TestProcessConfigRejectsBadValue(t *testing.T) {
	registerOptionsMock(t, "badmock")
	err := plugin.ProcessConfig(map[string]map[string]map[string]any{
		"metadata": {
			"badmock": {"tls": []string{"yes"}},
		},
	})
	require.ErrorContains(t, err, "metadata plugin badmock")
}
