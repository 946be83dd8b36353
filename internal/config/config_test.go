package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultAppliesExpectedValues(t *testing.T) {
	cfg := Default()
	if cfg.PacketSize != 4096 {
		t.Fatalf("got packet size %d, want 4096", cfg.PacketSize)
	}
	if cfg.TLS != TLSPreferred {
		t.Fatalf("got tls %v, want preferred", cfg.TLS)
	}
	if cfg.DialTimeout != 15*time.Second {
		t.Fatalf("got dial timeout %v", cfg.DialTimeout)
	}
	if cfg.QueryLogPreviewChars != 256 {
		t.Fatalf("got preview chars %d", cfg.QueryLogPreviewChars)
	}
	if cfg.ExchangeQueueDepth != 1 {
		t.Fatalf("got exchange queue depth %d, want 1", cfg.ExchangeQueueDepth)
	}
}

func TestLoadAppliesDefaultsForMissingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tds.yaml")
	if err := os.WriteFile(path, []byte("tls: required\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TLS != TLSRequired {
		t.Fatalf("got tls %v", cfg.TLS)
	}
	if cfg.PacketSize != 4096 {
		t.Fatalf("got packet size %d, want default 4096", cfg.PacketSize)
	}
}

func TestLoadRejectsInvalidPacketSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tds.yaml")
	if err := os.WriteFile(path, []byte("packet_size: 100\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for packet_size below 512")
	}
}

func TestLoadRejectsInvalidTLSMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tds.yaml")
	if err := os.WriteFile(path, []byte("tls: maybe\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for unknown tls mode")
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load("/nonexistent/path/tds.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
