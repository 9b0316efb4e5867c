package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/krug-dev/krug-mcp/internal/config"
	"github.com/krug-dev/krug-mcp/internal/domain/auth"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestCommands_Registered(t *testing.T) {
	want := map[string]bool{"start": false, "stop": false, "config": false, "hash-token": false, "version": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("%s command not registered with rootCmd", name)
		}
	}
}

func TestStartCmd_DevFlag(t *testing.T) {
	f := startCmd.Flags().Lookup("dev")
	if f == nil {
		t.Fatal("dev flag not registered")
	}
	if f.DefValue != "false" {
		t.Errorf("dev default = %q, want false", f.DefValue)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func runHashToken(t *testing.T, sha bool, stdin string, args ...string) string {
	t.Helper()
	prev := hashTokenSHA256
	hashTokenSHA256 = sha
	t.Cleanup(func() { hashTokenSHA256 = prev })

	var out bytes.Buffer
	hashTokenCmd.SetOut(&out)
	hashTokenCmd.SetIn(strings.NewReader(stdin))
	t.Cleanup(func() {
		hashTokenCmd.SetOut(nil)
		hashTokenCmd.SetIn(nil)
	})

	if err := hashTokenCmd.RunE(hashTokenCmd, args); err != nil {
		t.Fatalf("hash-token: %v", err)
	}
	return strings.TrimSpace(out.String())
}

func TestHashToken(t *testing.T) {
	tests := []struct {
		name     string
		sha      bool
		stdin    string
		args     []string
		wantType string
	}{
		{"argon2id from arg", false, "", []string{"s3cret"}, "argon2id"},
		{"sha256 from arg", true, "", []string{"s3cret"}, "sha256"},
		{"sha256 from stdin", true, "s3cret\n", nil, "sha256"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash := runHashToken(t, tt.sha, tt.stdin, tt.args...)
			if got := auth.DetectHashType(hash); got != tt.wantType {
				t.Fatalf("DetectHashType(%q) = %q, want %q", hash, got, tt.wantType)
			}
			ok, err := auth.VerifyToken("s3cret", hash)
			if err != nil || !ok {
				t.Errorf("VerifyToken = %v, %v; want true", ok, err)
			}
		})
	}
}

func TestHashToken_EmptyStdin(t *testing.T) {
	hashTokenCmd.SetIn(strings.NewReader("\n"))
	t.Cleanup(func() { hashTokenCmd.SetIn(nil) })
	if err := hashTokenCmd.RunE(hashTokenCmd, nil); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestPIDFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "server.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	if got := readPIDFile(path); got != os.Getpid() {
		t.Errorf("readPIDFile = %d, want %d", got, os.Getpid())
	}
}

func TestReadPIDFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	if got := readPIDFile(filepath.Join(dir, "missing.pid")); got != 0 {
		t.Errorf("missing file: got %d, want 0", got)
	}
	bad := filepath.Join(dir, "bad.pid")
	if err := os.WriteFile(bad, []byte("not-a-pid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := readPIDFile(bad); got != 0 {
		t.Errorf("malformed file: got %d, want 0", got)
	}
}

func TestNewVerifier(t *testing.T) {
	t.Run("plain token", func(t *testing.T) {
		cfg := &config.Config{Auth: config.AuthConfig{Token: "s3cret", Subject: "alice"}}
		v, err := newVerifier(cfg)
		if err != nil {
			t.Fatalf("newVerifier: %v", err)
		}
		if sub, err := v.Verify("s3cret"); err != nil || sub != "alice" {
			t.Errorf("Verify = %q, %v; want alice", sub, err)
		}
	})

	t.Run("token hash", func(t *testing.T) {
		cfg := &config.Config{Auth: config.AuthConfig{TokenHash: auth.HashTokenSHA256("s3cret"), Subject: "bob"}}
		v, err := newVerifier(cfg)
		if err != nil {
			t.Fatalf("newVerifier: %v", err)
		}
		if sub, err := v.Verify("s3cret"); err != nil || sub != "bob" {
			t.Errorf("Verify = %q, %v; want bob", sub, err)
		}
		if _, err := v.Verify("wrong"); err == nil {
			t.Error("Verify(wrong) should fail")
		}
	})

	t.Run("bad hash", func(t *testing.T) {
		cfg := &config.Config{Auth: config.AuthConfig{TokenHash: "md5:abc"}}
		if _, err := newVerifier(cfg); err == nil {
			t.Error("expected error for unsupported hash")
		}
	})
}

func TestOpenSessionStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mr := miniredis.RunT(t)

	tests := []struct {
		name string
		cfg  config.SessionConfig
	}{
		{"memory", config.SessionConfig{Store: config.StoreMemory}},
		{"default", config.SessionConfig{}},
		{"sqlite", config.SessionConfig{Store: config.StoreSQLite, SQLite: config.SQLiteConfig{Path: ":memory:"}}},
		{"redis", config.SessionConfig{Store: config.StoreRedis, Redis: config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "test"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := openSessionStore(ctx, &config.Config{Session: tt.cfg}, discardLogger())
			if err != nil {
				t.Fatalf("openSessionStore: %v", err)
			}
			defer func() { _ = store.Close() }()
			if err := store.Ping(ctx); err != nil {
				t.Errorf("Ping: %v", err)
			}
		})
	}
}

func TestOpenSessionStore_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := &config.Config{Session: config.SessionConfig{
		Store: config.StoreRedis,
		Redis: config.RedisConfig{Addr: addr},
	}}
	if _, err := openSessionStore(context.Background(), cfg, discardLogger()); err == nil {
		t.Error("expected error for unreachable redis")
	}
}

func TestOpenSessionStore_Unknown(t *testing.T) {
	cfg := &config.Config{Session: config.SessionConfig{Store: "etcd"}}
	if _, err := openSessionStore(context.Background(), cfg, discardLogger()); err == nil {
		t.Error("expected error for unknown store")
	}
}
