package frontdesk

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
completion:
  provider: mock
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Transport.Provider != "twilio" {
		t.Fatalf("expected twilio default, got %q", cfg.Transport.Provider)
	}
	if cfg.Session.IdleTimeoutMS != 600000 || cfg.Session.SweepIntervalMS != 30000 {
		t.Fatalf("unexpected session defaults: %+v", cfg.Session)
	}
	if cfg.Policy.MaxTurns != 12 {
		t.Fatalf("unexpected policy default: %+v", cfg.Policy)
	}
	if cfg.Call.RecordMaxSeconds != 120 {
		t.Fatalf("unexpected call default: %+v", cfg.Call)
	}
	if cfg.CallLog.Path != "calls.jsonl" {
		t.Fatalf("unexpected call log default: %+v", cfg.CallLog)
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-123")
	path := writeConfig(t, `
completion:
  provider: openai
  settings:
    api_key: "${TEST_OPENAI_KEY}"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Completion.Settings["api_key"]; got != "sk-123" {
		t.Fatalf("expected env expansion, got %v", got)
	}
}

func TestLoadConfigRejectsMissingProvider(t *testing.T) {
	path := writeConfig(t, `
completion:
  provider: ""
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
