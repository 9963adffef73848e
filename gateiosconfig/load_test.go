package gateiosconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileParsesAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "base_url: https://auth.gateai.net\n" +
		"bundle_identifier: net.gateai.app\n" +
		"team_identifier: ABCD123456\n" +
		"environment: device\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.BaseURL != "https://auth.gateai.net" {
		t.Fatalf("unexpected base_url: %q", cfg.BaseURL)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level, got %q", cfg.LogLevel)
	}
}

func TestLoadFileRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("bundle_identifier: net.gateai.app\n"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected validation error for missing base_url/team_identifier")
	}
}

func TestLoadFileMissingFile(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error reading a nonexistent file")
	}
}
