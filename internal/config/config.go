// Package config loads settings for the binaries from an optional yaml file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration tree shared by both binaries.
type Config struct {
	LogLevel string       `yaml:"log_level"`
	Server   ServerConfig `yaml:"server"`
	Client   ClientConfig `yaml:"client"`
}

// ServerConfig configures the room server binary.
type ServerConfig struct {
	Addr                string   `yaml:"addr"`
	RoomSize            int      `yaml:"room_size"`
	InitialAllowanceSec int      `yaml:"initial_allowance_sec"`
	TopUpThresholdSec   int      `yaml:"top_up_threshold_sec"`
	TopUpSec            int      `yaml:"top_up_sec"`
	AllowedOrigins      []string `yaml:"allowed_origins"`
}

// ClientConfig configures the terminal client binary.
type ClientConfig struct {
	ServerURL  string `yaml:"server_url"`
	PlayerName string `yaml:"player_name"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			Addr:                ":8080",
			RoomSize:            4,
			InitialAllowanceSec: 25,
			TopUpThresholdSec:   20,
			TopUpSec:            5,
			AllowedOrigins:      []string{"*"},
		},
		Client: ClientConfig{
			ServerURL: "ws://localhost:8080/ws",
		},
	}
}

// Load builds the configuration from defaults, the yaml file at path (when
// non-empty) and finally the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.LogLevel = getEnv("MAHJONG_LOG_LEVEL", cfg.LogLevel)
	cfg.Server.Addr = getEnv("MAHJONG_ADDR", cfg.Server.Addr)
	cfg.Server.RoomSize = getEnvAsInt("MAHJONG_ROOM_SIZE", cfg.Server.RoomSize)
	cfg.Server.InitialAllowanceSec = getEnvAsInt("MAHJONG_INITIAL_ALLOWANCE_SEC", cfg.Server.InitialAllowanceSec)
	cfg.Server.TopUpThresholdSec = getEnvAsInt("MAHJONG_TOP_UP_THRESHOLD_SEC", cfg.Server.TopUpThresholdSec)
	cfg.Server.TopUpSec = getEnvAsInt("MAHJONG_TOP_UP_SEC", cfg.Server.TopUpSec)
	cfg.Client.ServerURL = getEnv("MAHJONG_SERVER_URL", cfg.Client.ServerURL)
	cfg.Client.PlayerName = getEnv("MAHJONG_PLAYER_NAME", cfg.Client.PlayerName)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
