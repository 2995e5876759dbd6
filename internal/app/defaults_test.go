package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	tests := []struct {
		name   string
		env    map[string]string
		config string
		base   string
		actor  string
	}{
		{
			name: "explicit overrides",
			env: map[string]string{
				"ACL_CONFIG_PATH": "/custom/config.toml",
				"ACL_HOME":        "/custom/acl",
				"ACL_USER":        "alice",
				"XDG_CONFIG_HOME": "/xdg/config",
				"XDG_DATA_HOME":   "/xdg/data",
			},
			config: "/custom/config.toml",
			base:   "/custom/acl",
			actor:  "alice",
		},
		{
			name: "xdg directories",
			env: map[string]string{
				"XDG_CONFIG_HOME": "/xdg/config",
				"XDG_DATA_HOME":   "/xdg/data",
			},
			config: "/xdg/config/acl.toml",
			base:   "/xdg/data/acl",
		},
		{
			name: "relative xdg paths are ignored",
			env: map[string]string{
				"XDG_CONFIG_HOME": "config",
				"XDG_DATA_HOME":   "data",
			},
			config: filepath.Join(homeDir, ".config", "acl.toml"),
			base:   filepath.Join(homeDir, ".local", "share", "acl"),
		},
		{
			name:   "home fallback",
			config: filepath.Join(homeDir, ".config", "acl.toml"),
			base:   filepath.Join(homeDir, ".local", "share", "acl"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"ACL_CONFIG_PATH", "ACL_HOME", "ACL_USER", "XDG_CONFIG_HOME", "XDG_DATA_HOME"} {
				t.Setenv(key, tt.env[key])
			}

			d, err := GetDefaults()
			if err != nil {
				t.Fatalf("GetDefaults() error = %v", err)
			}
			if d.ConfigPath != tt.config {
				t.Errorf("ConfigPath = %q, want %q", d.ConfigPath, tt.config)
			}
			if d.BaseDir != tt.base {
				t.Errorf("BaseDir = %q, want %q", d.BaseDir, tt.base)
			}
			if want := filepath.Join(tt.base, "log"); d.LogDir != want {
				t.Errorf("LogDir = %q, want %q", d.LogDir, want)
			}
			if want := filepath.Join(tt.base, "db"); d.DataDir != want {
				t.Errorf("DataDir = %q, want %q", d.DataDir, want)
			}
			if d.Actor != tt.actor {
				t.Errorf("Actor = %q, want %q", d.Actor, tt.actor)
			}
		})
	}
}
