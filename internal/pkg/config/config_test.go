package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Addr != ":3000" || cfg.StreamBuffer != 256 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.RootDir == "" || cfg.InstanceID == "" {
		t.Errorf("expected derived root dir and instance id, got %q and %q", cfg.RootDir, cfg.InstanceID)
	}
}

func TestLoad_Precedence(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		body   string
		env    map[string]string
		expect func(t *testing.T, cfg *Config)
	}{
		{
			name: "yaml file overrides defaults",
			file: "devrelay.yaml",
			body: "addr: \":4000\"\nstream_buffer: 8\nfollow_remote: true\nredis_addr: localhost:6379\n",
			expect: func(t *testing.T, cfg *Config) {
				if cfg.Addr != ":4000" || cfg.StreamBuffer != 8 || !cfg.FollowRemote {
					t.Errorf("yaml values not applied: %+v", cfg)
				}
				if cfg.LogLevel != "info" {
					t.Errorf("unset yaml key must keep default, got %q", cfg.LogLevel)
				}
			},
		},
		{
			name: "toml file overrides defaults",
			file: "devrelay.toml",
			body: "addr = \":5000\"\njournal_dir = \"/tmp/devrelay\"\nwal_segment_size_bytes = 1024\n",
			expect: func(t *testing.T, cfg *Config) {
				if cfg.Addr != ":5000" || cfg.JournalDir != "/tmp/devrelay" || cfg.WALSegmentSize != 1024 {
					t.Errorf("toml values not applied: %+v", cfg)
				}
			},
		},
		{
			name: "environment overrides file",
			file: "devrelay.yaml",
			body: "addr: \":4000\"\ninstance_id: from-file\n",
			env:  map[string]string{"DEVRELAY_ADDR": ":6000", "PII_REDACTION_FIELDS": " email , ssn ,"},
			expect: func(t *testing.T, cfg *Config) {
				if cfg.Addr != ":6000" {
					t.Errorf("expected env addr, got %q", cfg.Addr)
				}
				if cfg.InstanceID != "from-file" {
					t.Errorf("expected file instance id, got %q", cfg.InstanceID)
				}
				if got := strings.Join(cfg.RedactionFields(), ","); got != "email,ssn" {
					t.Errorf("unexpected redaction fields %q", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load(writeFile(t, tt.file, tt.body))
			if err != nil {
				t.Fatalf("Load returned error: %v", err)
			}
			tt.expect(t, cfg)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		env  map[string]string
		want string
	}{
		{"unknown extension", "devrelay.ini", "addr=:1", nil, "unsupported config file extension"},
		{"malformed yaml", "devrelay.yaml", "addr: [", nil, "parse config"},
		{"bad capture level", "devrelay.yaml", "capture_level: loud\n", nil, "capture_level"},
		{"follow without redis", "devrelay.yaml", "follow_remote: true\n", nil, "follow_remote requires redis_addr"},
		{"segment larger than budget", "devrelay.toml", "journal_dir = \"/tmp/j\"\nwal_segment_size_bytes = 10\nwal_max_disk_size_bytes = 5\n", nil, "exceeds max disk size"},
		{"bad env value", "devrelay.yaml", "", map[string]string{"DEVRELAY_STREAM_BUFFER": "many"}, "parse environment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeFile(t, tt.file, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	if err != nil || level != slog.LevelWarn {
		t.Errorf("ParseLevel(warn) = %v, %v", level, err)
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}
