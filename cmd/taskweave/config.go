package main

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all taskweave configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath        string `json:"db_path"`
	LogLevel      string `json:"log_level"`
	DefaultFilter string `json:"default_filter"`
}

func defaultConfig() Config {
	return Config{
		DBPath:   filepath.Join(taskweaveDir(), "taskweave.db"),
		LogLevel: "info",
	}
}

func taskweaveDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskweave"
	}
	return filepath.Join(home, ".taskweave")
}

func settingsPath() string {
	return filepath.Join(taskweaveDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("TASKWEAVE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TASKWEAVE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TASKWEAVE_FILTER"); v != "" {
		cfg.DefaultFilter = v
	}

	return cfg
}
