package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_RequiresServiceName(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SERVICE_NAME", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without SERVICE_NAME")
	}
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SERVICE_NAME", "comments")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("APP_ENV", "Production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("expected ':8080', got %q", cfg.HTTP.Addr)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected 'info', got %q", cfg.LogLevel)
	}
	if !cfg.IsProduction() {
		t.Fatal("expected production env")
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("THREADKIT_A=from-file\nTHREADKIT_B=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("THREADKIT_A", "from-env")
	t.Setenv("THREADKIT_B", "")
	os.Unsetenv("THREADKIT_B")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := os.Getenv("THREADKIT_A"); v != "from-env" {
		t.Fatalf("expected env value to win, got %q", v)
	}
	if v := os.Getenv("THREADKIT_B"); v != "from-file" {
		t.Fatalf("expected file value, got %q", v)
	}
}

func TestIntAndDuration(t *testing.T) {
	t.Setenv("THREADKIT_INT", "7")
	t.Setenv("THREADKIT_BAD_INT", "-3")
	t.Setenv("THREADKIT_DUR", "3s")
	if v := Int("THREADKIT_INT", 1); v != 7 {
		t.Fatalf("expected 7, got %d", v)
	}
	if v := Int("THREADKIT_BAD_INT", 1); v != 1 {
		t.Fatalf("expected fallback 1, got %d", v)
	}
	if v := Duration("THREADKIT_DUR", time.Second); v != 3*time.Second {
		t.Fatalf("expected 3s, got %s", v)
	}
	t.Setenv("THREADKIT_BOOL", "1")
	t.Setenv("THREADKIT_BAD_BOOL", "sure")
	if !Bool("THREADKIT_BOOL", false) {
		t.Fatal("expected 1 to read as true")
	}
	if !Bool("THREADKIT_BAD_BOOL", true) {
		t.Fatal("expected fallback for an unparsable bool")
	}
	if v := String("THREADKIT_UNSET_STRING", "x"); v != "x" {
		t.Fatalf("expected fallback, got %q", v)
	}
}
