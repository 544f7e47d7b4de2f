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

import "fmt"

type Plugin interface {
	Start() error
	Stop() error
}

// ErrorPlugin is a plugin that always returns an error on Start()
type ErrorPlugin struct {
	Err error
}

func (e *ErrorPlugin) Start() error {
	return e.Err
}

func (e *ErrorPlugin) Stop() error {
	return nil
}

// NewErrorPlugin creates a new error plugin that returns the given error on Start()
func NewErrorPlugin(err error) Plugin {
	return &ErrorPlugin{Err: err}
}

// StartPlugin gets a plugin from the registry and starts it
func StartPlugin(pluginType PluginType, pluginName string) (Plugin, error) {
	p := GetPlugin(pluginType, pluginName)
	if p == nil {
		return nil, fmt.Errorf(
			"%s plugin '%s' not found",
			PluginTypeName(pluginType),
			pluginName,
		)
	}
	if err := p.Start(); err != nil {
		return nil, fmt.Errorf(
			"failed to start %s plugin '%s': %w",
			PluginTypeName(pluginType),
			pluginName,
			err,
		)
	}
	return p, nil
}

// SetPluginOption sets the value of a named option for a plugin entry, for
// callers that override plugin defaults programmatically (the sqlite data
// dir from the main config, for example). Unknown options are ignored so
// the same override can be applied to every plugin of a type.
// NOTE: this writes to the registry without locking and must only be called
// during startup, before any plugin is instantiated.
func SetPluginOption(
	pluginType PluginType,
	pluginName string,
	optionName string,
	value any,
) error {
	for i := range pluginEntries {
		p := &pluginEntries[i]
		if p.Type != pluginType || p.Name != pluginName {
			continue
		}
		for j := range p.Options {
			opt := &p.Options[j]
			if opt.Name != optionName {
				continue
			}
			ok := false
			switch opt.Type {
			case PluginOptionTypeString:
				var v string
				var dest *string
				if v, ok = value.(string); ok {
					if dest, ok = opt.Dest.(*string); ok && dest != nil {
						*dest = v
					}
				}
			case PluginOptionTypeBool:
				var v bool
				var dest *bool
				if v, ok = value.(bool); ok {
					if dest, ok = opt.Dest.(*bool); ok && dest != nil {
						*dest = v
					}
				}
			case PluginOptionTypeInt:
				var v int
				var dest *int
				if v, ok = value.(int); ok {
					if dest, ok = opt.Dest.(*int); ok && dest != nil {
						*dest = v
					}
				}
			case PluginOptionTypeUint:
				var dest *uint64
				if dest, ok = opt.Dest.(*uint64); ok && dest != nil {
					switch tv := value.(type) {
					case uint64:
						*dest = tv
					case int:
						if tv < 0 {
							return fmt.Errorf("invalid value for option %s: negative int", optionName)
						}
						*dest = uint64(tv)
					default:
						ok = false
					}
				}
			default:
				return fmt.Errorf(
					"unknown plugin option type %d for option %s",
					opt.Type,
					optionName,
				)
			}
			if !ok {
				return fmt.Errorf(
					"invalid type %T for option %s",
					value,
					optionName,
				)
			}
			return nil
		}
		return nil
	}
	return fmt.Errorf(
		"plugin %s of type %s not found",
		pluginName,
		PluginTypeName(pluginType),
	)
}
