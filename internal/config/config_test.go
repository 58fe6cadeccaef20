package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Store != StoreSQLite {
		t.Errorf("Store = %q, want %q", cfg.Store, StoreSQLite)
	}
	if cfg.HTTPBind != "127.0.0.1" {
		t.Errorf("HTTPBind = %q, want 127.0.0.1", cfg.HTTPBind)
	}
	if cfg.HTTPPort != 8787 {
		t.Errorf("HTTPPort = %d, want 8787", cfg.HTTPPort)
	}
	if cfg.MaxBodyBytes != 64*1024 {
		t.Errorf("MaxBodyBytes = %d, want %d", cfg.MaxBodyBytes, 64*1024)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store != StoreSQLite {
		t.Errorf("Store = %q, want default %q", cfg.Store, StoreSQLite)
	}
}

func TestLoad_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"store": "memory", "http_port": 9000, "disabled_tools": ["signature_ingest", "signature_overview"]}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store != StoreMemory {
		t.Errorf("Store = %q, want memory", cfg.Store)
	}
	if cfg.HTTPPort != 9000 {
		t.Errorf("HTTPPort = %d, want 9000", cfg.HTTPPort)
	}
	// Unset fields keep defaults
	if cfg.HTTPBind != "127.0.0.1" {
		t.Errorf("HTTPBind = %q, want default", cfg.HTTPBind)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
	if cfg.DisabledTools[0] != "signature_ingest" {
		t.Errorf("DisabledTools[0] = %q, want signature_ingest", cfg.DisabledTools[0])
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{not json`)

	if _, err := Load(tmpDir); err == nil {
		t.Fatal("Load() should fail on invalid JSON")
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	writeConfig(t, globalDir, `{"http_port": 9000, "log_level": "debug", "disabled_tools": ["signature_ingest"]}`)
	writeConfig(t, filepath.Join(repoRoot, ".thesignal"), `{"http_port": 9100, "disabled_tools": ["author_list"]}`)

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	// Repo overrides scalar
	if cfg.HTTPPort != 9100 {
		t.Errorf("HTTPPort = %d, want 9100 (repo override)", cfg.HTTPPort)
	}
	// Global survives where repo is silent
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug (global)", cfg.LogLevel)
	}
	// Arrays merged
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.HTTPPort != 8787 {
		t.Errorf("HTTPPort = %d, want 8787", cfg.HTTPPort)
	}
	if len(cfg.DisabledTools) != 0 {
		t.Errorf("DisabledTools = %v, want empty", cfg.DisabledTools)
	}
}

func TestLoadWithRepo_WalksUpward(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, filepath.Join(tmpDir, ".thesignal"), `{"store": "memory"}`)

	subdir := filepath.Join(tmpDir, "subdir", "deeper")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	cfg, err := LoadWithRepo(t.TempDir(), subdir)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.Store != StoreMemory {
		t.Errorf("Store = %q, want memory", cfg.Store)
	}
}

func TestFindRepoConfig_NotFound(t *testing.T) {
	if found := FindRepoConfig(t.TempDir()); found != "" {
		t.Errorf("FindRepoConfig() = %q, want empty string", found)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{Store: StoreSQLite, HTTPPort: 8787, DBMaxOpenConns: 5}
	overlay := &Config{Store: StoreS3, S3Bucket: "signals"} // HTTPPort, DBMaxOpenConns are zero

	result := Merge(base, overlay)

	if result.Store != StoreS3 {
		t.Errorf("Store = %q, want s3 (overlay)", result.Store)
	}
	if result.S3Bucket != "signals" {
		t.Errorf("S3Bucket = %q, want signals", result.S3Bucket)
	}
	if result.HTTPPort != 8787 {
		t.Errorf("HTTPPort = %d, want 8787 (base, overlay is zero)", result.HTTPPort)
	}
	if result.DBMaxOpenConns != 5 {
		t.Errorf("DBMaxOpenConns = %d, want 5 (base, overlay is zero)", result.DBMaxOpenConns)
	}
}

func TestMerge_BlankStringKeepsBase(t *testing.T) {
	result := Merge(&Config{LogLevel: "warn"}, &Config{LogLevel: "   "})
	if result.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", result.LogLevel)
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{DisabledTools: []string{"signature_ingest", "author_list"}}
	overlay := &Config{DisabledTools: []string{"author_list", " signature_overview "}}

	result := Merge(base, overlay)

	if len(result.DisabledTools) != 3 {
		t.Fatalf("DisabledTools length = %d, want 3 (merged, deduped)", len(result.DisabledTools))
	}
	has := make(map[string]bool)
	for _, s := range result.DisabledTools {
		has[s] = true
	}
	for _, want := range []string{"signature_ingest", "author_list", "signature_overview"} {
		if !has[want] {
			t.Errorf("DisabledTools missing %q", want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"memory", func(c *Config) { c.Store = StoreMemory }, false},
		{"s3 with bucket", func(c *Config) { c.Store = StoreS3; c.S3Bucket = "b" }, false},
		{"s3 without bucket", func(c *Config) { c.Store = StoreS3 }, true},
		{"s3 without key", func(c *Config) { c.Store = StoreS3; c.S3Bucket = "b"; c.S3Key = "" }, true},
		{"postgres with dsn", func(c *Config) { c.Store = StorePostgres; c.PostgresDSN = "postgres://localhost/signal" }, false},
		{"postgres without dsn", func(c *Config) { c.Store = StorePostgres }, true},
		{"unknown store", func(c *Config) { c.Store = "redis" }, true},
		{"port too large", func(c *Config) { c.HTTPPort = 70000 }, true},
		{"negative body cap", func(c *Config) { c.MaxBodyBytes = -1 }, true},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"upper log level", func(c *Config) { c.LogLevel = "DEBUG" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
