package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DenyRule is one entry of the ordered command deny-list. Pattern is a
// case-insensitive regular expression; the first matching rule wins.
type DenyRule struct {
	Pattern string `json:"pattern"`
	Reason  string `json:"reason"`
}

type Config struct {
	DataDir       string  `json:"data_dir"`
	LogLevel      string  `json:"log_level"`
	WorkspaceRoot string  `json:"workspace_root"`
	AllowedUsers  []int64 `json:"allowed_users"`
	AdminUsers    []int64 `json:"admin_users"`
	Session       struct {
		InactivityHours int    `json:"inactivity_hours"`
		SweepSchedule   string `json:"sweep_schedule"`
	} `json:"session"`
	Exec struct {
		TimeoutSeconds int      `json:"timeout_seconds"`
		MaxOutputBytes int      `json:"max_output_bytes"`
		MaxConcurrent  int      `json:"max_concurrent"`
		EnvAllowlist   []string `json:"env_allowlist"`
	} `json:"exec"`
	DenyRules []DenyRule `json:"deny_rules"`
	Git       struct {
		CloneTimeoutSeconds int    `json:"clone_timeout_seconds"`
		Token               string `json:"token"`
	} `json:"git"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
	HTTP struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"http"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".telecode"),
		LogLevel:      "info",
		WorkspaceRoot: filepath.Join(os.Getenv("HOME"), "telecode-workspaces"),
	}
	cfg.Session.InactivityHours = 24
	cfg.Session.SweepSchedule = "@every 10m"
	cfg.Exec.TimeoutSeconds = 180
	cfg.Exec.MaxOutputBytes = 64 * 1024
	cfg.Exec.MaxConcurrent = 4
	cfg.Exec.EnvAllowlist = []string{"PATH", "HOME", "LANG", "TERM", "USER", "SHELL", "GIT_*"}
	cfg.Git.CloneTimeoutSeconds = 300
	cfg.HTTP.Listen = "127.0.0.1:8321"

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}
	if ghToken := os.Getenv("GITHUB_TOKEN"); ghToken != "" {
		cfg.Git.Token = ghToken
	}
	if root := os.Getenv("TELECODE_WORKSPACE"); root != "" {
		cfg.WorkspaceRoot = root
	}
	if users := os.Getenv("ALLOWED_USERS"); users != "" {
		parsed, err := parseUserList(users)
		if err != nil {
			return nil, fmt.Errorf("parse ALLOWED_USERS: %w", err)
		}
		cfg.AllowedUsers = parsed
	}
	if users := os.Getenv("ADMIN_USERS"); users != "" {
		parsed, err := parseUserList(users)
		if err != nil {
			return nil, fmt.Errorf("parse ADMIN_USERS: %w", err)
		}
		cfg.AdminUsers = parsed
	}

	return cfg, nil
}

// Save writes the config as indented JSON, atomically via temp file + rename.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// parseUserList parses a comma-separated list of numeric user IDs.
func parseUserList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
