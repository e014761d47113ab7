package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "acre.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_DecodesServers(t *testing.T) {
	path := writeConfig(t, `
[[servers]]
name = "gopls"
files = "\\.go$"
root_uri = "file:///home/user/proj"

[[servers]]
name = "rust-analyzer"
executable = "rust-analyzer"
files = "\\.rs$"
workspace_folders = ["file:///home/user/proj"]
timeout = "5s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 2)

	gopls := cfg.Servers[0]
	require.Equal(t, "gopls", gopls.Name)
	require.Equal(t, "gopls", gopls.Command)
	require.True(t, gopls.MatchesFile("main.go"))
	require.False(t, gopls.MatchesFile("main.rs"))

	ra := cfg.Servers[1]
	require.Equal(t, "rust-analyzer", ra.Command)
	require.Len(t, ra.WorkspaceFolders, 1)
}

func TestLoad_EmptyServersIsError(t *testing.T) {
	path := writeConfig(t, "")
	_, err := Load(path)
	require.ErrorIs(t, err, ErrNoServers)
}

func TestLoad_MissingNameIsError(t *testing.T) {
	path := writeConfig(t, `
[[servers]]
files = "\\.go$"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_BadRegexIsError(t *testing.T) {
	path := writeConfig(t, `
[[servers]]
name = "broken"
files = "("
`)
	_, err := Load(path)
	require.Error(t, err)
}
