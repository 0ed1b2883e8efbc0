package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "config.json")
}

func TestSave_ReloadRoundTrip(t *testing.T) {
	path := tempConfigPath(t)

	original := &Config{
		DataDir:   "/tmp/test-data",
		OutputDir: "/tmp/test-out",
		LogLevel:  "debug",
		Schedule:  "0 3 * * *",
	}
	original.Agent.Addr = "127.0.0.1:9999"
	original.Scrape.DelayBetweenChatsMS = 100
	original.Scrape.DelayAfterClickMS = 200
	original.Scrape.PreviewWaitTimeMS = 300
	original.Scrape.BatchSize = 5
	original.Scrape.ChunkSizeMB = 8
	original.Telegram.Token = "bot-token-456"
	original.Telegram.ChatID = 42

	if err := Save(path, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file does not exist after Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.DataDir != "/tmp/test-data" {
		t.Errorf("expected data_dir /tmp/test-data, got %s", loaded.DataDir)
	}
	if loaded.LogLevel != "debug" {
		t.Errorf("expected log_level debug, got %s", loaded.LogLevel)
	}
	if loaded.Agent.Addr != "127.0.0.1:9999" {
		t.Errorf("expected agent addr 127.0.0.1:9999, got %s", loaded.Agent.Addr)
	}
	if loaded.Scrape.BatchSize != 5 {
		t.Errorf("expected batch_size 5, got %d", loaded.Scrape.BatchSize)
	}
	if loaded.Telegram.Token != "bot-token-456" {
		t.Errorf("expected telegram token to survive round trip, got %s", loaded.Telegram.Token)
	}
	if loaded.Telegram.ChatID != 42 {
		t.Errorf("expected chat_id 42, got %d", loaded.Telegram.ChatID)
	}
	if loaded.Schedule != "0 3 * * *" {
		t.Errorf("expected schedule to survive round trip, got %s", loaded.Schedule)
	}
}

func TestLoad_WritesDefaults(t *testing.T) {
	path := tempConfigPath(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("expected default log_level info, got %s", cfg.LogLevel)
	}
	if cfg.Agent.Addr != "127.0.0.1:8765" {
		t.Errorf("expected default agent addr, got %s", cfg.Agent.Addr)
	}
	if cfg.Scrape.DelayBetweenChatsMS != 500 {
		t.Errorf("expected default delay_between_chats_ms 500, got %d", cfg.Scrape.DelayBetweenChatsMS)
	}
	if cfg.Scrape.DelayAfterClickMS != 3000 {
		t.Errorf("expected default delay_after_click_ms 3000, got %d", cfg.Scrape.DelayAfterClickMS)
	}
	if cfg.Scrape.PreviewWaitTimeMS != 5000 {
		t.Errorf("expected default preview_wait_time_ms 5000, got %d", cfg.Scrape.PreviewWaitTimeMS)
	}
	if cfg.Scrape.BatchSize != 2 {
		t.Errorf("expected default batch_size 2, got %d", cfg.Scrape.BatchSize)
	}
	if cfg.Scrape.ChunkSizeMB != 4 {
		t.Errorf("expected default chunk_size_mb 4, got %d", cfg.Scrape.ChunkSizeMB)
	}

	// Defaults should have been written to disk.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("defaults file not written: %v", err)
	}
	var onDisk map[string]any
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("defaults file is not valid JSON: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := tempConfigPath(t)

	t.Setenv("GEMSCRAPE_AGENT_ADDR", "127.0.0.1:7777")
	t.Setenv("GEMSCRAPE_OUTPUT_DIR", "/tmp/env-out")
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("TELEGRAM_CHAT_ID", "77")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Agent.Addr != "127.0.0.1:7777" {
		t.Errorf("expected env addr override, got %s", cfg.Agent.Addr)
	}
	if cfg.OutputDir != "/tmp/env-out" {
		t.Errorf("expected env output dir override, got %s", cfg.OutputDir)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("expected env telegram token, got %s", cfg.Telegram.Token)
	}
	if cfg.Telegram.ChatID != 77 {
		t.Errorf("expected env chat id 77, got %d", cfg.Telegram.ChatID)
	}
}

func TestLoad_BadChatIDEnv(t *testing.T) {
	path := tempConfigPath(t)
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")

	if _, err := Load(path); err == nil {
		t.Error("expected error for unparseable TELEGRAM_CHAT_ID")
	}
}

func TestChunkSize(t *testing.T) {
	var cfg Config
	if got := cfg.ChunkSize(); got != 4<<20 {
		t.Errorf("expected 4MB fallback, got %d", got)
	}
	cfg.Scrape.ChunkSizeMB = 2
	if got := cfg.ChunkSize(); got != 2<<20 {
		t.Errorf("expected 2MB, got %d", got)
	}
}
