package config

import (
	"log/slog"
	"slices"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 || cfg.HistoryLimit != 100 || cfg.SaveInterval != 30*time.Second {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("HISTORY_LIMIT", "5")
	t.Setenv("SAVE_INTERVAL", "2m")
	t.Setenv("LOG_LEVEL", "debug")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9000 || cfg.HistoryLimit != 5 || cfg.SaveInterval != 2*time.Minute {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Fatalf("level = %v", cfg.Level())
	}
}

func TestOriginsAndLevel(t *testing.T) {
	cfg := &Config{AllowedOrigins: " http://a , ,http://b", LogLevel: "loud"}
	if got := cfg.Origins(); !slices.Equal(got, []string{"http://a", "http://b"}) {
		t.Fatalf("origins = %v", got)
	}
	if cfg.Level() != slog.LevelInfo {
		t.Fatalf("unknown level = %v", cfg.Level())
	}
}
