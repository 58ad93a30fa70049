package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fserve/internal/config"
)

func TestValueOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue string
		want         string
	}{
		{"empty value uses default", "", "default", "default"},
		{"non-empty value used", "custom", "default", "custom"},
		{"both empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := valueOrDefault(tt.value, tt.defaultValue); got != tt.want {
				t.Errorf("valueOrDefault(%q, %q) = %q, want %q", tt.value, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestPrintSetting(t *testing.T) {
	var buf bytes.Buffer
	printSetting(&buf, "port", 5500, 5500)
	printSetting(&buf, "host", "0.0.0.0", "127.0.0.1")

	want := "port: 5500\nhost: 0.0.0.0 (default: 127.0.0.1)\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestWriteConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Port = 8080
	result := &config.LoadResult{
		Config:     cfg,
		ConfigPath: "/etc/fserve/config.json",
		EnvOverrides: []config.EnvOverride{
			{EnvVar: "FSERVE_LOG_LEVEL", Path: "logging.level", Value: "debug"},
		},
	}

	tests := []struct {
		format string
		want   []string
	}{
		{"human", []string{
			"Source: /etc/fserve/config.json",
			"FSERVE_LOG_LEVEL=debug → logging.level",
			"  port: 8080 (default: 5500)",
			"  host: 127.0.0.1\n",
		}},
		{"json", []string{`"configPath": "/etc/fserve/config.json"`, `"port": 8080`}},
		{"toml", []string{"[server]", "port = 8080"}},
		{"yaml", []string{"server:", "  port: 8080"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeConfig(&buf, result, tt.format); err != nil {
				t.Fatalf("writeConfig() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q:\n%s", want, buf.String())
				}
			}
		})
	}

	if err := writeConfig(&bytes.Buffer{}, result, "xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestWriteConfig_JSONShape(t *testing.T) {
	result := &config.LoadResult{Config: config.DefaultConfig(), UsedDefaults: true}

	var buf bytes.Buffer
	if err := writeConfig(&buf, result, "json"); err != nil {
		t.Fatal(err)
	}

	var decoded config.LoadResult
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !decoded.UsedDefaults || decoded.Config == nil || decoded.Config.Server.Port != 5500 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestPrintEnvVars(t *testing.T) {
	var buf bytes.Buffer
	printEnvVars(&buf)
	out := buf.String()

	for _, name := range config.GetSupportedEnvVars() {
		if !strings.Contains(out, name) {
			t.Errorf("output missing %s", name)
		}
	}
	if !strings.Contains(out, "server.port") {
		t.Error("output should name the config path each variable overrides")
	}
}

func TestConfigInit(t *testing.T) {
	t.Cleanup(func() { configInitForce = false })

	for _, name := range []string{"config.json", "config.toml", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			configInitForce = false
			path := filepath.Join(t.TempDir(), "nested", name)

			var out bytes.Buffer
			configInitCmd.SetOut(&out)
			t.Cleanup(func() { configInitCmd.SetOut(nil) })

			if err := runConfigInit(configInitCmd, []string{path}); err != nil {
				t.Fatalf("runConfigInit() error = %v", err)
			}
			if !strings.Contains(out.String(), path) {
				t.Errorf("output = %q, want path", out.String())
			}

			cfg, err := config.LoadConfig(path)
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			if cfg.Server.Port != 5500 || cfg.Limits.MaxConcurrent != 64 {
				t.Errorf("written config = %+v", cfg)
			}

			if err := runConfigInit(configInitCmd, []string{path}); err == nil {
				t.Error("expected error when file exists")
			}
			configInitForce = true
			if err := runConfigInit(configInitCmd, []string{path}); err != nil {
				t.Errorf("--force should overwrite: %v", err)
			}
		})
	}
}

func TestConfigInit_DefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("FSERVE_HOME", home)
	configInitForce = false
	configInitCmd.SetOut(&bytes.Buffer{})
	t.Cleanup(func() { configInitCmd.SetOut(nil) })

	if err := runConfigInit(configInitCmd, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(home, "config.json")); err != nil {
		t.Errorf("default config not written: %v", err)
	}
}
