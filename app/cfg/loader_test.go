package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestParseAdminIDs(t *testing.T) {
	ids, err := parseAdminIDs("123, 456,789")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 {
		t.Fatalf("Expected 3 admin IDs, got %d", len(ids))
	}
	if ids[0] != 123 || ids[1] != 456 || ids[2] != 789 {
		t.Errorf("Unexpected admin IDs: %v", ids)
	}
}

func TestParseAdminIDsEmpty(t *testing.T) {
	ids, err := parseAdminIDs("  ")
	if err != nil {
		t.Fatal(err)
	}
	if ids != nil {
		t.Errorf("Expected nil for empty input, got %v", ids)
	}
}

func TestParseAdminIDsInvalid(t *testing.T) {
	if _, err := parseAdminIDs("123,abc"); err == nil {
		t.Error("Expected error for non-numeric admin ID")
	}
}

func TestConfigFields(t *testing.T) {
	cfg := &Cfg{
		TelegramToken:   "123:token",
		DBPath:          "data/test.sqlite3",
		RedisURL:        "redis://localhost:6379/0",
		PollInterval:    10,
		QueueBatchSize:  10,
		MaxAttempts:     3,
		DigestCron:      "0 9 * * *",
		DefaultLanguage: "ru",
		Port:            "8080",
		Version:         "test-version",
	}

	if cfg.PollInterval != 10 {
		t.Errorf("Expected poll interval 10, got %d", cfg.PollInterval)
	}
	if cfg.QueueBatchSize != 10 {
		t.Errorf("Expected queue batch size 10, got %d", cfg.QueueBatchSize)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("Expected max attempts 3, got %d", cfg.MaxAttempts)
	}
	if cfg.DigestCron != "0 9 * * *" {
		t.Errorf("Expected digest cron '0 9 * * *', got '%s'", cfg.DigestCron)
	}
	if cfg.DefaultLanguage != "ru" {
		t.Errorf("Expected default language 'ru', got '%s'", cfg.DefaultLanguage)
	}
	if cfg.Version != "test-version" {
		t.Errorf("Expected version 'test-version', got '%s'", cfg.Version)
	}
}
