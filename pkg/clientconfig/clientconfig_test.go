package clientconfig

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBusinessHours(t *testing.T) {
	always := BusinessHours{}
	if !always.IsOpen(time.Now()) {
		t.Fatalf("zero-value hours must be always open")
	}

	day := BusinessHours{Open: "09:00", Close: "17:00", Timezone: "UTC"}
	at := func(h, m int) time.Time {
		return time.Date(2026, 8, 20, h, m, 0, 0, time.UTC)
	}
	if !day.IsOpen(at(9, 0)) || !day.IsOpen(at(12, 30)) {
		t.Fatalf("expected open during the window")
	}
	if day.IsOpen(at(8, 59)) || day.IsOpen(at(17, 0)) {
		t.Fatalf("expected closed outside the window")
	}

	overnight := BusinessHours{Open: "22:00", Close: "06:00", Timezone: "UTC"}
	if !overnight.IsOpen(at(23, 0)) || !overnight.IsOpen(at(5, 0)) {
		t.Fatalf("expected open across midnight")
	}
	if overnight.IsOpen(at(12, 0)) {
		t.Fatalf("expected closed midday for overnight window")
	}
}

func TestFileStoreLookup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clients.yaml")
	content := `clients:
  acme:
    greeting: "Hi, Acme here"
    escalation_number: "+1900"
    numbers: ["+1800"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	st := NewFileStore(path)
	cfg, err := st.GetClientConfig(context.Background(), "Acme")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cfg.Greeting != "Hi, Acme here" || cfg.EscalationNumber != "+1900" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if _, err := st.GetClientConfig(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if id, ok := st.ClientIDForNumber(context.Background(), "+1800"); !ok || id != "acme" {
		t.Fatalf("number resolution failed: %q %v", id, ok)
	}
}

func TestFileStorePicksUpEdits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clients.yaml")
	write := func(greeting string) {
		content := "clients:\n  acme:\n    greeting: \"" + greeting + "\"\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write("before")
	st := NewFileStore(path)
	cfg, err := st.GetClientConfig(context.Background(), "acme")
	if err != nil || cfg.Greeting != "before" {
		t.Fatalf("initial read: %+v %v", cfg, err)
	}
	write("after")
	cfg, err = st.GetClientConfig(context.Background(), "acme")
	if err != nil || cfg.Greeting != "after" {
		t.Fatalf("edit not picked up: %+v %v", cfg, err)
	}
}

func TestStaticStore(t *testing.T) {
	st := NewStaticStore(map[string]ClientConfig{
		"Acme": {Greeting: "hello", Numbers: []string{"+1800"}},
	})
	cfg, err := st.GetClientConfig(context.Background(), "acme")
	if err != nil || cfg.Greeting != "hello" {
		t.Fatalf("lookup failed: %+v %v", cfg, err)
	}
	if id, ok := st.ClientIDForNumber(context.Background(), "+1800"); !ok || id != "acme" {
		t.Fatalf("number resolution failed: %q %v", id, ok)
	}
}
