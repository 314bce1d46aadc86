package config

import (
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7946", cfg.BindAddr)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raftd.yaml")
	cfg := Default()
	cfg.NodeID = "n1"
	cfg.Servers = []ServerConfig{
		{ID: "n1", Address: "127.0.0.1:7946", Voting: true},
		{ID: "n2", Address: "127.0.0.1:7947", Voting: true},
	}
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, "n1", loaded.NodeID)
	require.Len(t, loaded.Servers, 2)

	conf := loaded.Configuration()
	require.Len(t, conf.Servers, 2)
	require.Equal(t, 2, conf.Quorum())
}

func TestFlagOverrideOnlyAppliesWhenSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raftd.yaml")
	cfg := Default()
	cfg.NodeID = "from-file"
	require.NoError(t, Save(path, cfg))

	cmd := &cobra.Command{Use: "raftd"}
	cmd.Flags().String("node-id", "", "")
	cmd.Flags().String("data-dir", "./unused", "")
	require.NoError(t, cmd.Flags().Set("node-id", "from-flag"))

	loaded, err := Load(path, cmd)
	require.NoError(t, err)
	require.Equal(t, "from-flag", loaded.NodeID)
	// data-dir wasn't explicitly set on cmd, so the file/default value stands.
	require.Equal(t, cfg.DataDir, loaded.DataDir)
}

func TestEngineConfigCarriesTimingOverrides(t *testing.T) {
	cfg := Default()
	cfg.ElectionTimeoutMS = 2000
	cfg.SnapshotThreshold = 500

	ec := cfg.EngineConfig()
	require.Equal(t, int64(2000), ec.ElectionTimeoutMS)
	require.Equal(t, uint64(500), ec.SnapshotThreshold)
}
