// Package config holds the settings shared by the editor and the relay.
//
// Settings are resolved from layers, each overriding the one before:
//
//  1. built-in defaults
//  2. a TOML or YAML file
//  3. environment variables prefixed with COLED_
//  4. command line flags
//
// Layers are nested maps merged with loader.DeepMerge and decoded into a
// typed Config. Setting paths are dotted, for example
// network.reconnectIntervalSeconds.
package config
