package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParseArgsDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := ParseArgs(nil, envMap(nil), io.Discard)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Fatalf("unexpected base url: %q", cfg.BaseURL)
	}
	if cfg.UserID != DefaultUserID || cfg.StorageKey != DefaultStorageKey || cfg.Storage != DefaultStorage {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
	if cfg.Timeout != 0 {
		t.Fatalf("expected no timeout by default, got %s", cfg.Timeout)
	}
	wantDir := filepath.Join(home, ".local", "share", "gyankosh")
	if cfg.DataDir != wantDir || cfg.StoragePath() != wantDir {
		t.Fatalf("unexpected data dir: %q", cfg.DataDir)
	}
	if stat, err := os.Stat(wantDir); err != nil || !stat.IsDir() {
		t.Fatalf("expected data dir to be created: %v", err)
	}
}

func TestParseArgsPrecedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfgPath := filepath.Join(home, "custom.toml")
	body := strings.Join([]string{
		`base_url = "http://file:1"`,
		`user_id = "from-file"`,
		`timeout = "45s"`,
		`storage = "sqlite"`,
		`data_dir = "` + filepath.Join(home, "filedata") + `"`,
		`plain = true`,
	}, "\n")
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	env := envMap(map[string]string{
		"GYANKOSH_URL":  "http://env:2",
		"GYANKOSH_USER": "from-env",
	})
	cfg, err := ParseArgs([]string{"-config", cfgPath, "-user", "from-flag"}, env, io.Discard)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cfg.BaseURL != "http://env:2" {
		t.Fatalf("env should override file, got %q", cfg.BaseURL)
	}
	if cfg.UserID != "from-flag" {
		t.Fatalf("flag should override env, got %q", cfg.UserID)
	}
	if cfg.Timeout != 45*time.Second {
		t.Fatalf("expected file timeout, got %s", cfg.Timeout)
	}
	if !cfg.Plain {
		t.Fatalf("expected plain from file")
	}
	if cfg.StoragePath() != filepath.Join(home, "filedata", "history.sqlite") {
		t.Fatalf("unexpected sqlite path: %q", cfg.StoragePath())
	}
}

func TestParseArgsMissingExplicitConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, err := ParseArgs([]string{"-config", "/nonexistent/gyankosh.toml"}, envMap(nil), io.Discard)
	if err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestParseArgsValidation(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cases := map[string][]string{
		"storage":    {"-storage", "redis"},
		"url":        {"-url", "localhost:8000"},
		"timeout":    {"-timeout", "-1s"},
		"ask+clear":  {"-ask", "hi", "-clear"},
		"positional": {"extra"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseArgs(args, envMap(nil), io.Discard); err == nil {
				t.Fatalf("expected error for %v", args)
			}
		})
	}
}

func TestParseArgsOneShot(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := ParseArgs([]string{"-ask", "  what is kgp?  ", "-storage", "memory"}, envMap(nil), io.Discard)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Ask != "what is kgp?" {
		t.Fatalf("unexpected ask: %q", cfg.Ask)
	}
	if cfg.Storage != "memory" {
		t.Fatalf("unexpected storage: %q", cfg.Storage)
	}
}
