package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	DataDir   string `json:"data_dir"`
	OutputDir string `json:"output_dir"`
	LogLevel  string `json:"log_level"`
	Agent     struct {
		Addr string `json:"addr"`
	} `json:"agent"`
	Scrape struct {
		DelayBetweenChatsMS int `json:"delay_between_chats_ms"`
		DelayAfterClickMS   int `json:"delay_after_click_ms"`
		PreviewWaitTimeMS   int `json:"preview_wait_time_ms"`
		BatchSize           int `json:"batch_size"`
		ChunkSizeMB         int `json:"chunk_size_mb"`
	} `json:"scrape"`
	// Schedule is a cron expression for unattended exports. Empty disables
	// the scheduler.
	Schedule string `json:"schedule"`
	Telegram struct {
		Token  string `json:"token"`
		ChatID int64  `json:"chat_id"`
	} `json:"telegram"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:  filepath.Join(os.Getenv("HOME"), ".gemscrape"),
		LogLevel: "info",
	}
	cfg.OutputDir = filepath.Join(cfg.DataDir, "exports")
	cfg.Agent.Addr = "127.0.0.1:8765"
	cfg.Scrape.DelayBetweenChatsMS = 500
	cfg.Scrape.DelayAfterClickMS = 3000
	cfg.Scrape.PreviewWaitTimeMS = 5000
	cfg.Scrape.BatchSize = 2
	cfg.Scrape.ChunkSizeMB = 4

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
	if addr := os.Getenv("GEMSCRAPE_AGENT_ADDR"); addr != "" {
		cfg.Agent.Addr = addr
	}
	if out := os.Getenv("GEMSCRAPE_OUTPUT_DIR"); out != "" {
		cfg.OutputDir = out
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}
	if tgChat := os.Getenv("TELEGRAM_CHAT_ID"); tgChat != "" {
		id, err := strconv.ParseInt(tgChat, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Telegram.ChatID = id
	}

	return cfg, nil
}

// ChunkSize returns the configured transfer chunk size in bytes.
func (c *Config) ChunkSize() int {
	if c.Scrape.ChunkSizeMB <= 0 {
		return 4 << 20
	}
	return c.Scrape.ChunkSizeMB << 20
}

// Save writes the config to path using atomic write (temp file + rename).
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
