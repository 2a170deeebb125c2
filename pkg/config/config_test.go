package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("LABRUN_CONFIG", "")
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	c, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.APIURL != "http://localhost:8000" {
		t.Errorf("APIURL = %q", c.APIURL)
	}
	if c.TickInterval != 500*time.Millisecond {
		t.Errorf("TickInterval = %v", c.TickInterval)
	}
	if !c.Simulate {
		t.Error("Simulate should default to true")
	}
	if c.Serve.Addr != "127.0.0.1:8000" {
		t.Errorf("Serve.Addr = %q", c.Serve.Addr)
	}
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "labrun.yaml")
	content := "api_url: http://lab-gateway:9000\ntick_interval: 250ms\nlog:\n  level: debug\nserve:\n  latency: 2s\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LABRUN_CONFIG", path)
	t.Setenv("LABRUN_LOG_LEVEL", "error")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("api-url", "", "")
	flags.Bool("simulate", true, "")
	if err := flags.Parse([]string{"--simulate=false"}); err != nil {
		t.Fatal(err)
	}

	c, err := Load(flags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.APIURL != "http://lab-gateway:9000" {
		t.Errorf("APIURL = %q, want file value (unset flag must not override)", c.APIURL)
	}
	if c.TickInterval != 250*time.Millisecond {
		t.Errorf("TickInterval = %v, want 250ms", c.TickInterval)
	}
	if c.Log.Level != "error" {
		t.Errorf("Log.Level = %q, want env override", c.Log.Level)
	}
	if c.Serve.Latency != 2*time.Second {
		t.Errorf("Serve.Latency = %v, want 2s", c.Serve.Latency)
	}
	if c.Simulate {
		t.Error("Simulate flag should override default")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	t.Setenv("LABRUN_CONFIG", filepath.Join(dir, "missing.yaml"))
	if _, err := Load(nil); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}
