package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	v := viper.New()
	file, err := Init(v, "")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if file != "" {
		t.Fatalf("config file = %q, want none", file)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChannelExpirationMin != 10080 || cfg.MaintenanceCron != "0 */6 * * *" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.ShutdownTimeout != 10*time.Second || cfg.LogFormat != "json" || cfg.ListenAddr != ":8080" {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CHANNEL_EXPIRATION_MIN", "90")
	t.Setenv("COMPASS_STORE_DSN", "memory://")
	t.Setenv("COMPASS_LOG_FORMAT", "text")

	v := viper.New()
	if _, err := Init(v, ""); err != nil {
		t.Fatalf("Init: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChannelExpirationMin != 90 || cfg.StoreDSN != "memory://" || cfg.LogFormat != "text" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]any{
		KeyChannelExpirationMin: 0,
		KeyStoreDSN:             " ",
		KeyLogFormat:            "xml",
	}
	for key, value := range tests {
		v := viper.New()
		SetDefaults(v)
		v.Set(key, value)
		if _, err := Load(v); err == nil || !strings.Contains(err.Error(), key) {
			t.Errorf("Load with %s=%v: err = %v", key, value, err)
		}
	}
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	v := viper.New()
	SetDefaults(v)
	want, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}
	want.WebhookURL = "https://compass.example/v1/sync/gcal/notifications"
	want.ShutdownTimeout = 3 * time.Second

	if err := Write(path, want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm = %o, want 600", perm)
	}

	t.Setenv("HOME", dir)
	back := viper.New()
	if used, err := Init(back, path); err != nil || used != path {
		t.Fatalf("Init = %q, %v", used, err)
	}
	got, err := Load(back)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatalf("round trip:\n got %+v\nwant %+v", got, want)
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if got := ExpandPath("~/creds.json"); got != filepath.Join(home, "creds.json") {
		t.Fatalf("ExpandPath = %q", got)
	}
	if got := ExpandPath("/abs/creds.json"); got != "/abs/creds.json" {
		t.Fatalf("ExpandPath = %q", got)
	}
}
