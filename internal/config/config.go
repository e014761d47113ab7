// Package config loads acre.toml, the static description of which language
// servers to spawn and which window paths they apply to.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mkmik/acre/internal/lsp"
)

// ErrNoServers is returned when a config file parses but declares no
// servers; the daemon has nothing useful to do and exits status 1.
var ErrNoServers = fmt.Errorf("config: no servers configured")

// rawConfig mirrors acre.toml's shape directly as TOML decodes it;
// convertServer converts each [[servers]] entry into the regexp-compiled, duration-parsed
// form the rest of the daemon consumes.
type rawConfig struct {
	Servers []rawServer `toml:"servers"`
}

type rawServer struct {
	Name             string   `toml:"name"`
	Executable       string   `toml:"executable"`
	Files            string   `toml:"files"`
	RootURI          string   `toml:"root_uri"`
	WorkspaceFolders []string `toml:"workspace_folders"`
	Timeout          string   `toml:"timeout"`
}

// Config is the decoded, validated form of acre.toml.
type Config struct {
	Servers []lsp.ServerConfig
}

// Load reads and decodes the TOML file at path.
func Load(path string) (*Config, error) {
	var raw rawConfig
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return fromRaw(raw)
}

func fromRaw(raw rawConfig) (*Config, error) {
	if len(raw.Servers) == 0 {
		return nil, ErrNoServers
	}

	cfg := &Config{Servers: make([]lsp.ServerConfig, 0, len(raw.Servers))}
	for _, s := range raw.Servers {
		sc, err := convertServer(s)
		if err != nil {
			return nil, err
		}
		cfg.Servers = append(cfg.Servers, sc)
	}
	return cfg, nil
}

func convertServer(s rawServer) (lsp.ServerConfig, error) {
	if s.Name == "" {
		return lsp.ServerConfig{}, fmt.Errorf("config: server entry missing name")
	}
	exe := s.Executable
	if exe == "" {
		exe = s.Name
	}

	var filesRE *regexp.Regexp
	if s.Files != "" {
		re, err := regexp.Compile(s.Files)
		if err != nil {
			return lsp.ServerConfig{}, fmt.Errorf("config: server %s: files pattern: %w", s.Name, err)
		}
		filesRE = re
	}

	timeout := 10 * time.Second
	if s.Timeout != "" {
		d, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return lsp.ServerConfig{}, fmt.Errorf("config: server %s: timeout: %w", s.Name, err)
		}
		timeout = d
	}

	folders := make([]lsp.WorkspaceFolder, 0, len(s.WorkspaceFolders))
	for _, f := range s.WorkspaceFolders {
		folders = append(folders, lsp.WorkspaceFolder{URI: lsp.DocumentURI(f), Name: filepath.Base(f)})
	}

	return lsp.ServerConfig{
		Name:             s.Name,
		Command:          exe,
		Files:            filesRE,
		RootURI:          lsp.DocumentURI(s.RootURI),
		WorkspaceFolders: folders,
		Timeout:          timeout,
	}, nil
}

// DefaultPath resolves acre.toml through the XDG config base directory
// convention: $XDG_CONFIG_HOME/acre/acre.toml, falling back to
// ~/.config/acre/acre.toml.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "acre", "acre.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "acre", "acre.toml"), nil
}
