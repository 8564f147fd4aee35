package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
log_level: debug
server:
  addr: ":9000"
  room_size: 2
client:
  server_url: ws://game.example.com/ws
  player_name: Aki
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, ":9000")
	}
	if cfg.Server.RoomSize != 2 {
		t.Errorf("Server.RoomSize = %d, want 2", cfg.Server.RoomSize)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Server.InitialAllowanceSec != 25 {
		t.Errorf("Server.InitialAllowanceSec = %d, want 25", cfg.Server.InitialAllowanceSec)
	}
	if cfg.Client.PlayerName != "Aki" {
		t.Errorf("Client.PlayerName = %q, want %q", cfg.Client.PlayerName, "Aki")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  room_size: 2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("MAHJONG_ROOM_SIZE", "3")
	t.Setenv("MAHJONG_LOG_LEVEL", "warn")
	t.Setenv("MAHJONG_TOP_UP_SEC", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.RoomSize != 3 {
		t.Errorf("Server.RoomSize = %d, want env override 3", cfg.Server.RoomSize)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "warn")
	}
	if cfg.Server.TopUpSec != 5 {
		t.Errorf("Server.TopUpSec = %d, want default 5 for unparsable env", cfg.Server.TopUpSec)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
