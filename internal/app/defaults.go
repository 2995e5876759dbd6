package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults are the locations and identity used when no flag overrides them.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
	DataDir    string
	Actor      string // from ACL_USER; empty when unset
}

// GetDefaults resolves Defaults from the environment:
//   - ACL_CONFIG_PATH: config file (default $XDG_CONFIG_HOME/acl.toml, then ~/.config/acl.toml)
//   - ACL_HOME: data directory (default $XDG_DATA_HOME/acl, then ~/.local/share/acl)
//   - ACL_USER: acting user for commands that take --as
func GetDefaults() (*Defaults, error) {
	configPath := os.Getenv("ACL_CONFIG_PATH")
	if configPath == "" {
		dir, err := xdgDir("XDG_CONFIG_HOME", ".config")
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dir, "acl.toml")
	}

	baseDir := os.Getenv("ACL_HOME")
	if baseDir == "" {
		dir, err := xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(dir, "acl")
	}

	return &Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		DataDir:    filepath.Join(baseDir, "db"),
		Actor:      os.Getenv("ACL_USER"),
	}, nil
}

// xdgDir returns $env if it is an absolute path, else ~/fallback.
func xdgDir(env, fallback string) (string, error) {
	if dir := os.Getenv(env); filepath.IsAbs(dir) {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, fallback), nil
}
