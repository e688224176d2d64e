package config

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alexflint/go-arg"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected port 8080, got %q", cfg.Port)
	}
	if cfg.StorageDir != "temp_downloads" {
		t.Errorf("expected storage dir temp_downloads, got %q", cfg.StorageDir)
	}
	if cfg.Retention != 3600*time.Second {
		t.Errorf("expected retention of 3600s, got %s", cfg.Retention)
	}
	if cfg.ExtractTimeout != 2*time.Minute {
		t.Errorf("expected extract timeout 2m, got %s", cfg.ExtractTimeout)
	}
	if cfg.Format != DefaultFormat {
		t.Errorf("expected default format, got %q", cfg.Format)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("expected addr :8080, got %q", cfg.Addr())
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RETENTION", "15m")
	t.Setenv("STORAGE_DIR", "/var/lib/tikgrab")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %q", cfg.Port)
	}
	if cfg.Retention != 15*time.Minute {
		t.Errorf("expected retention 15m, got %s", cfg.Retention)
	}
	if cfg.StorageDir != "/var/lib/tikgrab" {
		t.Errorf("expected storage dir from env, got %q", cfg.StorageDir)
	}
}

func TestLoadFlagsOverrideDefaults(t *testing.T) {
	cfg, err := Load([]string{"--retention", "30s", "--format", "best", "--log-format", "json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Retention != 30*time.Second {
		t.Errorf("expected retention 30s, got %s", cfg.Retention)
	}
	if cfg.Format != "best" {
		t.Errorf("expected format best, got %q", cfg.Format)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("expected json log format, got %q", cfg.LogFormat)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"zero retention", []string{"--retention", "0s"}, "retention must be positive"},
		{"negative timeout", []string{"--extract-timeout", "-1s"}, "extract timeout must be positive"},
		{"empty storage", []string{"--storage-dir", ""}, "storage directory must not be empty"},
		{"bad log format", []string{"--log-format", "xml"}, `unknown log format "xml"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadHelp(t *testing.T) {
	if _, err := Load([]string{"--help"}); !errors.Is(err, arg.ErrHelp) {
		t.Fatalf("expected arg.ErrHelp, got %v", err)
	}

	var buf bytes.Buffer
	WriteHelp(&buf)
	for _, want := range []string{"--retention", "RETENTION", "--storage-dir"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected help to mention %s, got:\n%s", want, buf.String())
		}
	}
}
