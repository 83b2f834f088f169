// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/rotor-bridge/pkg/types"
)

// setConfigDefaults registers every key of the default configuration with
// viper, so config files and ROTOR_BRIDGE_* variables can override nested
// settings such as ROTOR_BRIDGE_SOLVER_COMMAND.
func setConfigDefaults() {
	data, err := yaml.Marshal(types.DefaultBridgeConfig())
	if err != nil {
		panic(err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		panic(err)
	}
	for key, v := range flatten("", tree) {
		viper.SetDefault(key, v)
	}
}

func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			for sk, sv := range flatten(key, sub) {
				out[sk] = sv
			}
			continue
		}
		out[key] = v
	}
	return out
}

// loadConfig decodes the effective configuration: defaults, then the config
// file, then environment, then flags.
func loadConfig() (types.BridgeConfig, error) {
	var cfg types.BridgeConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return types.BridgeConfig{}, fmt.Errorf("%w: decoding configuration: %v", types.ErrConfiguration, err)
	}
	return cfg, nil
}
