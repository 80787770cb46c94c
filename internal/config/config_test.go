package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    Config
		wantErr bool
	}{
		{"defaults", nil, Default(), false},
		{
			"all set",
			map[string]string{
				"CHESSRELOCATE_LOG_LEVEL":     "DEBUG",
				"CHESSRELOCATE_DATA_DIR":      "/var/lib/cr",
				"CHESSRELOCATE_METRICS_ADDR":  ":9090",
				"CHESSRELOCATE_THREADS":       "4",
				"CHESSRELOCATE_HASH":          "256",
				"CHESSRELOCATE_NO_STORE":      "true",
				"CHESSRELOCATE_TABLEBASE_URL": "http://tb.local/standard",
			},
			Config{LogLevel: "debug", DataDir: "/var/lib/cr", MetricsAddr: ":9090", Threads: 4, HashMB: 256, NoStore: true, TablebaseURL: "http://tb.local/standard"},
			false,
		},
		{"blank values ignored", map[string]string{"CHESSRELOCATE_THREADS": "  "}, Default(), false},
		{"bad threads", map[string]string{"CHESSRELOCATE_THREADS": "lots"}, Config{}, true},
		{"threads out of range", map[string]string{"CHESSRELOCATE_THREADS": "0"}, Config{}, true},
		{"bad hash", map[string]string{"CHESSRELOCATE_HASH": "-1"}, Config{}, true},
		{"bad bool", map[string]string{"CHESSRELOCATE_NO_STORE": "maybe"}, Config{}, true},
		{"bad level", map[string]string{"CHESSRELOCATE_LOG_LEVEL": "loud"}, Config{}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromEnv(lookupMap(tc.env))
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("err = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("CHESSRELOCATE_HASH=48\nCHESSRELOCATE_THREADS=3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHESSRELOCATE_THREADS", "2")
	t.Setenv("CHESSRELOCATE_HASH", "")
	os.Unsetenv("CHESSRELOCATE_HASH")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HashMB != 48 {
		t.Errorf("HashMB = %d, want 48 from the file", cfg.HashMB)
	}
	if cfg.Threads != 2 {
		t.Errorf("Threads = %d, want the environment's 2", cfg.Threads)
	}

	if _, err := Load(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing env file: %v", err)
	}
}

func TestLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "warn"
	lvl, err := cfg.Level()
	if err != nil || lvl != zapcore.WarnLevel {
		t.Errorf("Level = %v, %v", lvl, err)
	}
}
