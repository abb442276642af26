package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvidchess/corvid/mcts"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadOverridesOnlySetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corvid.toml")
	contents := `
[network]
path = "net.bin"

[engine]
threads = 4

[search]
Cpuct = 2.5
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "net.bin", cfg.Network.Path)
	require.Equal(t, 4, cfg.Engine.Threads)
	require.EqualValues(t, 2.5, cfg.Search.Cpuct)

	// Everything else in Search should still be DefaultParams, not zeroed.
	want := mcts.DefaultParams()
	require.Equal(t, want.FpuBase, cfg.Search.FpuBase)
	require.Equal(t, want.RootPst, cfg.Search.RootPst)
}

func TestLoadMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corvid.toml")
	require.NoError(t, os.WriteFile(path, []byte("not valid toml ["), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
