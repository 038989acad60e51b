package app

import (
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("env vars override defaults", func(t *testing.T) {
		t.Setenv("FLOWVC_CONFIG_PATH", "/custom/flowvc.toml")
		t.Setenv("FLOWVC_HOME", "/custom/data")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		if defaults["config_path"] != "/custom/flowvc.toml" {
			t.Errorf("config_path = %q, want /custom/flowvc.toml", defaults["config_path"])
		}
		if defaults["base_dir"] != "/custom/data" {
			t.Errorf("base_dir = %q, want /custom/data", defaults["base_dir"])
		}
		if defaults["log_dir"] != filepath.Join("/custom/data", "log") {
			t.Errorf("log_dir = %q", defaults["log_dir"])
		}
	})

	t.Run("falls back to home directory", func(t *testing.T) {
		t.Setenv("FLOWVC_CONFIG_PATH", "")
		t.Setenv("FLOWVC_HOME", "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		if filepath.Base(defaults["config_path"]) != "flowvc.toml" {
			t.Errorf("config_path = %q, want flowvc.toml basename", defaults["config_path"])
		}
	})
}
