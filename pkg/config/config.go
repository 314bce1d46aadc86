// Package config loads a raftd node's on-disk YAML configuration and
// merges it with cobra flag overrides, the same precedence cmd/warren used
// for its cluster init flags: file values first, then any flag the
// operator actually set on the command line wins.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/raftcore/pkg/raft"
)

// ServerConfig is one member of the initial cluster, as written into the
// YAML file's servers list.
type ServerConfig struct {
	ID      string `yaml:"id"`
	Address string `yaml:"address"`
	Voting  bool   `yaml:"voting"`
}

// Config is a raftd node's full configuration: its own identity, where it
// stores state, who else is in the cluster, and the engine's timing and
// snapshot knobs.
type Config struct {
	NodeID  string `yaml:"node_id"`
	BindAddr string `yaml:"bind_addr"`
	APIAddr  string `yaml:"api_addr"`
	DataDir  string `yaml:"data_dir"`

	Servers []ServerConfig `yaml:"servers"`

	ElectionTimeoutMS  int64  `yaml:"election_timeout_ms"`
	HeartbeatTimeoutMS int64  `yaml:"heartbeat_timeout_ms"`
	SnapshotThreshold  uint64 `yaml:"snapshot_threshold"`
	SnapshotTrailing   uint64 `yaml:"snapshot_trailing"`

	LogLevel  string `yaml:"log_level"`
	LogJSON   bool   `yaml:"log_json"`
}

// Default returns a single-node-friendly starting point; Load overlays a
// file and flags on top of this.
func Default() Config {
	return Config{
		BindAddr: "127.0.0.1:7946",
		APIAddr:  "127.0.0.1:8080",
		DataDir:  "./raftd-data",
		LogLevel: "info",
	}
}

// Load reads path (if it exists) into a Config seeded from Default, then
// applies any flags the caller actually set on cmd. A missing file is not
// an error: a brand-new node may be configured entirely from flags.
func Load(path string, cmd *cobra.Command) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if cmd != nil {
		applyFlagOverrides(&cfg, cmd)
	}

	return cfg, nil
}

// applyFlagOverrides mirrors cmd/warren's pattern of only honoring a flag
// when the operator explicitly set it (cmd.Flags().Changed), so an unset
// flag never clobbers a value the config file supplied.
func applyFlagOverrides(cfg *Config, cmd *cobra.Command) {
	flags := cmd.Flags()

	if flags.Changed("node-id") {
		cfg.NodeID, _ = flags.GetString("node-id")
	}
	if flags.Changed("bind-addr") {
		cfg.BindAddr, _ = flags.GetString("bind-addr")
	}
	if flags.Changed("api-addr") {
		cfg.APIAddr, _ = flags.GetString("api-addr")
	}
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.LogJSON, _ = flags.GetBool("log-json")
	}
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encoding: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

// EngineConfig builds a raft.EngineConfig from the timing knobs in cfg.
// Zero values fall through to raft.DefaultEngineConfig via EngineConfig's
// own defaults() pass, so an operator only needs to set what they want to
// change.
func (c Config) EngineConfig() raft.EngineConfig {
	return raft.EngineConfig{
		ElectionTimeoutMS:  c.ElectionTimeoutMS,
		HeartbeatTimeoutMS: c.HeartbeatTimeoutMS,
		SnapshotThreshold:  c.SnapshotThreshold,
		SnapshotTrailing:   c.SnapshotTrailing,
	}
}

// Configuration builds the initial raft.Configuration this node should
// bootstrap with, from the YAML servers list.
func (c Config) Configuration() raft.Configuration {
	conf := raft.Configuration{Servers: make([]raft.Server, len(c.Servers))}
	for i, s := range c.Servers {
		conf.Servers[i] = raft.Server{ID: s.ID, Address: s.Address, Voting: s.Voting}
	}
	return conf
}
