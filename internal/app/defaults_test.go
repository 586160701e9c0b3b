package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("HT_CONFIG_PATH", "/custom/config.toml")
		t.Setenv("HT_HOME", "/custom/ht")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		if defaults["config_path"] != "/custom/config.toml" {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], "/custom/config.toml")
		}
		if defaults["base_dir"] != "/custom/ht" {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], "/custom/ht")
		}
		if defaults["log_dir"] != "/custom/ht/log" {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], "/custom/ht/log")
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("HT_CONFIG_PATH", "")
		t.Setenv("HT_HOME", "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()

		wantConfig := filepath.Join(homeDir, ".config", "ht.toml")
		if defaults["config_path"] != wantConfig {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], wantConfig)
		}

		wantBase := filepath.Join(homeDir, ".local", "share", "ht")
		if defaults["base_dir"] != wantBase {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], wantBase)
		}
	})
}

func TestAPIToken(t *testing.T) {
	t.Setenv("HT_API_TOKEN", "")
	if got := APIToken("from-config"); got != "from-config" {
		t.Errorf("APIToken() = %q, want %q", got, "from-config")
	}

	t.Setenv("HT_API_TOKEN", " from-env ")
	if got := APIToken("from-config"); got != "from-env" {
		t.Errorf("APIToken() = %q, want %q", got, "from-env")
	}
}
