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

package plugin

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

const envVarPrefix = "ZKCIRCLES"

type PluginOptionType int

const (
	PluginOptionTypeString PluginOptionType = 1
	PluginOptionTypeBool   PluginOptionType = 2
	PluginOptionTypeInt    PluginOptionType = 3
	PluginOptionTypeUint   PluginOptionType = 4
)

type PluginOption struct {
	DefaultValue any
	Dest         any
	Name         string
	Description  string
	CustomEnvVar string
	Type         PluginOptionType
}

// flagName returns the command line flag for an option, such as
// metadata-postgres-host
func (p *PluginOption) flagName(pluginType PluginType, pluginName string) string {
	return strings.Join(
		[]string{PluginTypeName(pluginType), pluginName, p.Name},
		"-",
	)
}

// envVarName returns the environment variable for an option, such as
// ZKCIRCLES_METADATA_POSTGRES_HOST
func (p *PluginOption) envVarName(pluginType PluginType, pluginName string) string {
	if p.CustomEnvVar != "" {
		return p.CustomEnvVar
	}
	ret := strings.Join(
		[]string{envVarPrefix, PluginTypeName(pluginType), pluginName, p.Name},
		"_",
	)
	return strings.ToUpper(strings.ReplaceAll(ret, "-", "_"))
}

func (p *PluginOption) AddToFlagSet(
	fs *pflag.FlagSet,
	pluginType PluginType,
	pluginName string,
) error {
	flagName := p.flagName(pluginType, pluginName)
	switch p.Type {
	case PluginOptionTypeString:
		dest, ok := p.Dest.(*string)
		if !ok {
			return fmt.Errorf("option %s: destination is not *string", flagName)
		}
		def, _ := p.DefaultValue.(string)
		fs.StringVar(dest, flagName, def, p.Description)
	case PluginOptionTypeBool:
		dest, ok := p.Dest.(*bool)
		if !ok {
			return fmt.Errorf("option %s: destination is not *bool", flagName)
		}
		def, _ := p.DefaultValue.(bool)
		fs.BoolVar(dest, flagName, def, p.Description)
	case PluginOptionTypeInt:
		dest, ok := p.Dest.(*int)
		if !ok {
			return fmt.Errorf("option %s: destination is not *int", flagName)
		}
		def, _ := p.DefaultValue.(int)
		fs.IntVar(dest, flagName, def, p.Description)
	case PluginOptionTypeUint:
		dest, ok := p.Dest.(*uint64)
		if !ok {
			return fmt.Errorf("option %s: destination is not *uint64", flagName)
		}
		def, _ := p.DefaultValue.(uint64)
		fs.Uint64Var(dest, flagName, def, p.Description)
	default:
		return fmt.Errorf("unknown plugin option type %d for option %s", p.Type, flagName)
	}
	return nil
}

// ProcessEnvVar sets the option from its environment variable when present
func (p *PluginOption) ProcessEnvVar(pluginType PluginType, pluginName string) error {
	envVar := p.envVarName(pluginType, pluginName)
	value, ok := os.LookupEnv(envVar)
	if !ok {
		return nil
	}
	if err := p.setFromString(value); err != nil {
		return fmt.Errorf("environment variable %s: %w", envVar, err)
	}
	return nil
}

// ProcessConfig sets the option from a parsed config file value
func (p *PluginOption) ProcessConfig(value any) error {
	switch v := value.(type) {
	case string:
		return p.setFromString(v)
	case bool:
		return p.setFromString(strconv.FormatBool(v))
	case int:
		return p.setFromString(strconv.Itoa(v))
	case uint64:
		return p.setFromString(strconv.FormatUint(v, 10))
	default:
		return fmt.Errorf("option %s: unsupported value type %T", p.Name, value)
	}
}

func (p *PluginOption) setFromString(value string) error {
	switch p.Type {
	case PluginOptionTypeString:
		dest, ok := p.Dest.(*string)
		if !ok || dest == nil {
			return fmt.Errorf("option %s: destination is not *string", p.Name)
		}
		*dest = value
	case PluginOptionTypeBool:
		dest, ok := p.Dest.(*bool)
		if !ok || dest == nil {
			return fmt.Errorf("option %s: destination is not *bool", p.Name)
		}
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("option %s: %w", p.Name, err)
		}
		*dest = v
	case PluginOptionTypeInt:
		dest, ok := p.Dest.(*int)
		if !ok || dest == nil {
			return fmt.Errorf("option %s: destination is not *int", p.Name)
		}
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("option %s: %w", p.Name, err)
		}
		*dest = v
	case PluginOptionTypeUint:
		dest, ok := p.Dest.(*uint64)
		if !ok || dest == nil {
			return fmt.Errorf("option %s: destination is not *uint64", p.Name)
		}
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("option %s: %w", p.Name, err)
		}
		*dest = v
	default:
		return fmt.Errorf("unknown plugin option type %d for option %s", p.Type, p.Name)
	}
	return nil
}

// PopulateCmdlineOptions adds a flag for every option of every registered
// plugin
func PopulateCmdlineOptions(fs *pflag.FlagSet) error {
	for _, entry := range pluginEntries {
		for i := range entry.Options {
			if err := entry.Options[i].AddToFlagSet(fs, entry.Type, entry.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// ProcessEnvVars applies environment overrides to every registered plugin
func ProcessEnvVars() error {
	for _, entry := range pluginEntries {
		for i := range entry.Options {
			if err := entry.Options[i].ProcessEnvVar(entry.Type, entry.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// ProcessConfig applies plugin sections of the config file, keyed by plugin
// type name, plugin name and option name
func ProcessConfig(pluginConfig map[string]map[string]map[string]any) error {
	for _, entry := range pluginEntries {
		typeConfig, ok := pluginConfig[PluginTypeName(entry.Type)]
		if !ok {
			continue
		}
		options, ok := typeConfig[entry.Name]
		if !ok {
			continue
		}
		for i := range entry.Options {
			value, ok := options[entry.Options[i].Name]
			if !ok {
				continue
			}
			if err := entry.Options[i].ProcessConfig(value); err != nil {
				return fmt.Errorf(
					"%s plugin %s: %w",
					PluginTypeName(entry.Type),
					entry.Name,
					err,
				)
			}
		}
	}
	return nil
}
