package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("SN_CONFIG_PATH", "/custom/config.toml")
		t.Setenv("SN_HOME", "/custom/sn")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		if defaults["config_path"] != "/custom/config.toml" {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], "/custom/config.toml")
		}
		if defaults["base_dir"] != "/custom/sn" {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], "/custom/sn")
		}
		if defaults["log_dir"] != "/custom/sn/log" {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], "/custom/sn/log")
		}
	})

	t.Run("config follows SN_HOME", func(t *testing.T) {
		t.Setenv("SN_CONFIG_PATH", "")
		t.Setenv("SN_HOME", "/srv/sn")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}
		if defaults["config_path"] != "/srv/sn/config.toml" {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], "/srv/sn/config.toml")
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("SN_CONFIG_PATH", "")
		t.Setenv("SN_HOME", "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()

		wantConfig := filepath.Join(homeDir, ".config", "sn", "config.toml")
		if defaults["config_path"] != wantConfig {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], wantConfig)
		}

		wantBase := filepath.Join(homeDir, ".local", "share", "sn")
		if defaults["base_dir"] != wantBase {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], wantBase)
		}
		if defaults["log_dir"] != filepath.Join(wantBase, "log") {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], filepath.Join(wantBase, "log"))
		}
	})
}
