package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:8080")
	}
	if cfg.Server.MaxBodyBytes != 1<<20 {
		t.Errorf("MaxBodyBytes = %d, want 1 MiB", cfg.Server.MaxBodyBytes)
	}
	if cfg.Auth.Subject != "jon.doe@example.com" {
		t.Errorf("Subject = %q", cfg.Auth.Subject)
	}
	if cfg.Session.Store != StoreMemory {
		t.Errorf("Store = %q, want memory", cfg.Session.Store)
	}
	if cfg.SessionTTL() != 30*time.Minute {
		t.Errorf("SessionTTL = %v, want 30m", cfg.SessionTTL())
	}
	if cfg.SessionGraceTTL() != time.Minute {
		t.Errorf("SessionGraceTTL = %v, want 1m", cfg.SessionGraceTTL())
	}
	if cfg.TaskItemDelay() != 500*time.Millisecond {
		t.Errorf("TaskItemDelay = %v, want 500ms", cfg.TaskItemDelay())
	}
	if cfg.Session.SQLite.Path != ":memory:" {
		t.Errorf("SQLite.Path = %q", cfg.Session.SQLite.Path)
	}
}

func TestConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Server:  ServerConfig{HTTPAddr: ":9090", LogLevel: "warn"},
		Session: SessionConfig{TTL: "1d", Store: StoreRedis},
	}
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != ":9090" || cfg.Server.LogLevel != "warn" {
		t.Errorf("server overwritten: %+v", cfg.Server)
	}
	if cfg.SessionTTL() != 24*time.Hour {
		t.Errorf("SessionTTL = %v, want 24h", cfg.SessionTTL())
	}
	if cfg.Session.Store != StoreRedis {
		t.Errorf("Store = %q, want redis", cfg.Session.Store)
	}
}

func TestConfig_SetDevDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{DevMode: true}
	cfg.SetDefaults()
	cfg.SetDevDefaults()

	if cfg.Auth.Token != DevToken {
		t.Errorf("Token = %q, want dev token", cfg.Auth.Token)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.Server.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("dev config should validate: %v", err)
	}

	// A configured secret is kept.
	cfg2 := Config{DevMode: true, Auth: AuthConfig{TokenHash: "sha256:" + sixtyFourHex}}
	cfg2.SetDevDefaults()
	if cfg2.Auth.Token != "" {
		t.Errorf("Token = %q, want empty when token_hash set", cfg2.Auth.Token)
	}

	// Not dev mode: untouched.
	cfg3 := Config{}
	cfg3.SetDevDefaults()
	if cfg3.Auth.Token != "" {
		t.Error("SetDevDefaults must be a no-op outside dev mode")
	}
}

func TestConfig_Redacted(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Auth:    AuthConfig{Token: "hunter2"},
		Session: SessionConfig{Redis: RedisConfig{Password: "pw"}},
	}
	r := cfg.Redacted()

	if r.Auth.Token == "hunter2" || r.Session.Redis.Password == "pw" {
		t.Errorf("secrets leaked: %+v", r)
	}
	if cfg.Auth.Token != "hunter2" {
		t.Error("Redacted must not modify the receiver")
	}
}

func TestFindConfigFileInPaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		files []string
		want  string
	}{
		{"empty dir", nil, ""},
		{"yaml", []string{"krug-mcp.yaml"}, "krug-mcp.yaml"},
		{"yml", []string{"krug-mcp.yml"}, "krug-mcp.yml"},
		{"ignores binary", []string{"krug-mcp"}, ""},
		{"prefers yaml", []string{"krug-mcp.yml", "krug-mcp.yaml"}, "krug-mcp.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			for _, f := range tt.files {
				if err := os.WriteFile(filepath.Join(dir, f), []byte("server:\n  http_addr: :9090\n"), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			want := ""
			if tt.want != "" {
				want = filepath.Join(dir, tt.want)
			}
			if got := findConfigFileInPaths([]string{dir}); got != want {
				t.Errorf("findConfigFileInPaths = %q, want %q", got, want)
			}
		})
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "krug-mcp.yaml")
	yaml := `
server:
  http_addr: "0.0.0.0:9000"
auth:
  token: "from-file"
session:
  ttl: "2h"
  store: sqlite
  sqlite:
    path: "` + filepath.Join(dir, "sessions.db") + `"
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KRUG_MCP_SESSION_GRACE_TTL", "90s")

	InitViper(path)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:9000" {
		t.Errorf("HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.SessionTTL() != 2*time.Hour {
		t.Errorf("SessionTTL = %v, want 2h", cfg.SessionTTL())
	}
	if cfg.SessionGraceTTL() != 90*time.Second {
		t.Errorf("SessionGraceTTL = %v, want 90s from env", cfg.SessionGraceTTL())
	}
	if cfg.Session.Store != StoreSQLite {
		t.Errorf("Store = %q", cfg.Session.Store)
	}
	if ConfigFileUsed() != path {
		t.Errorf("ConfigFileUsed = %q, want %q", ConfigFileUsed(), path)
	}
}

func TestLoadConfig_MissingSecret(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	InitViper(filepath.Join(t.TempDir(), "krug-mcp.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() without a token should fail")
	}
}

func TestConfigKeys(t *testing.T) {
	keys := make(map[string]bool)
	for _, k := range configKeys(reflect.TypeOf(Config{}), "") {
		keys[k] = true
	}

	for _, want := range []string{"session.redis.addr", "server.tls_key", "telemetry.metrics_interval", "dev_mode"} {
		if !keys[want] {
			t.Errorf("configKeys() missing %q", want)
		}
	}
	for _, parent := range []string{"session", "session.redis"} {
		if keys[parent] {
			t.Errorf("configKeys() should not include struct key %q", parent)
		}
	}
}
