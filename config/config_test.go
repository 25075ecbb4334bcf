package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adlasm/adlasm/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	if cfg.Assembly.Imagebase != "0x1000" {
		t.Errorf("default imagebase = %q; want 0x1000", cfg.Assembly.Imagebase)
	}
	if cfg.Assembly.Sigma16Labels {
		t.Error("sigma16 labels should default to off")
	}
	if cfg.Assembly.MaxMatchDepth != 500 {
		t.Errorf("default max match depth = %d; want 500", cfg.Assembly.MaxMatchDepth)
	}
	if cfg.Output.DefaultBin != "default.out" {
		t.Errorf("default bin = %q; want default.out", cfg.Output.DefaultBin)
	}
	if cfg.Output.WriteSigma16 != "" {
		t.Errorf("write_sigma16 should default to empty, got %q", cfg.Output.WriteSigma16)
	}

	base, err := cfg.Imagebase()
	if err != nil {
		t.Fatalf("Imagebase: %v", err)
	}
	if base != 0x1000 {
		t.Errorf("parsed imagebase = %#x; want 0x1000", base)
	}
}

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Assembly.Imagebase != "0x1000" {
		t.Errorf("missing file should yield defaults, got imagebase %q", cfg.Assembly.Imagebase)
	}
}

func TestLoadFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[assembly]
imagebase = "0x8000"
sigma16_labels = true

[output]
default_bin = "a.out"
write_sigma16 = "a.s16.txt"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Assembly.Imagebase != "0x8000" {
		t.Errorf("imagebase = %q; want 0x8000", cfg.Assembly.Imagebase)
	}
	if !cfg.Assembly.Sigma16Labels {
		t.Error("sigma16_labels not loaded")
	}
	if cfg.Output.DefaultBin != "a.out" {
		t.Errorf("default_bin = %q; want a.out", cfg.Output.DefaultBin)
	}
	if cfg.Output.WriteSigma16 != "a.s16.txt" {
		t.Errorf("write_sigma16 = %q; want a.s16.txt", cfg.Output.WriteSigma16)
	}
	// Untouched settings keep their defaults.
	if cfg.Assembly.MaxMatchDepth != 500 {
		t.Errorf("max_match_depth = %d; want default 500", cfg.Assembly.MaxMatchDepth)
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := config.DefaultConfig()
	cfg.Assembly.Imagebase = "0x00401000"
	cfg.Display.BytesPerLine = 8

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if loaded.Assembly.Imagebase != "0x00401000" {
		t.Errorf("imagebase = %q; want 0x00401000", loaded.Assembly.Imagebase)
	}
	if loaded.Display.BytesPerLine != 8 {
		t.Errorf("bytes_per_line = %d; want 8", loaded.Display.BytesPerLine)
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"0x1000", 0x1000, false},
		{"4096", 4096, false},
		{"0X08048310", 0x08048310, false},
		{"  0x10  ", 0x10, false},
		{"zzz", 0, true},
		{"", 0, true},
		{"0x100000000", 0, true},
	}

	for _, tt := range tests {
		got, err := config.ParseAddress(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAddress(%q) succeeded; want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAddress(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAddress(%q) = %#x; want %#x", tt.in, got, tt.want)
		}
	}
}
