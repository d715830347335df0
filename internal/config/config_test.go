package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/closurectl/internal/optimizer"
	"github.com/danmuck/closurectl/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "closurectl.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadTemplateMatchesDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := Load(writeConfig(t, Template))
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	def := DefaultConfig()
	if cfg.Optimizer.Runtime != def.Optimizer.Runtime || cfg.Optimizer.CompilerJar != def.Optimizer.CompilerJar {
		t.Fatalf("unexpected compiler settings: %+v", cfg.Optimizer)
	}
	if cfg.Optimizer.ScratchDir != "/tmp/rdisk" {
		t.Fatalf("unexpected scratch dir: %q", cfg.Optimizer.ScratchDir)
	}
	if cfg.Optimizer.Level != optimizer.LevelAdvanced {
		t.Fatalf("unexpected level: %q", cfg.Optimizer.Level)
	}
	if cfg.Optimizer.Timeout != time.Minute {
		t.Fatalf("unexpected timeout: %v", cfg.Optimizer.Timeout)
	}
	if cfg.Optimizer.Naming != optimizer.NamingUnique {
		t.Fatalf("unexpected naming: %q", cfg.Optimizer.Naming)
	}
	if len(cfg.Optimizer.ExtraFlags) != 0 {
		t.Fatalf("unexpected extra flags: %v", cfg.Optimizer.ExtraFlags)
	}
	if cfg.Server.Addr != ":9300" || cfg.Server.ID != "closurectl" {
		t.Fatalf("unexpected server: %+v", cfg.Server)
	}
}

func TestLoadOverridesOnlyDefinedKeys(t *testing.T) {
	testlog.Start(t)
	cfg, err := Load(writeConfig(t, `
compiler_jar = "/opt/closure/compiler.jar"
compilation_level = "simple"
timeout = "5s"
max_concurrent = 3
fail_on_tool_error = true
artifact_naming = "FIXED"
extra_flags = ["--language_out=ECMASCRIPT5", " "]

[server]
addr = "127.0.0.1:9400"
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	opt := cfg.Optimizer
	if opt.Runtime != "java" {
		t.Fatalf("undefined runtime must keep default, got %q", opt.Runtime)
	}
	if opt.CompilerJar != "/opt/closure/compiler.jar" {
		t.Fatalf("unexpected jar: %q", opt.CompilerJar)
	}
	if opt.Level != optimizer.LevelSimple {
		t.Fatalf("unexpected level: %q", opt.Level)
	}
	if opt.Timeout != 5*time.Second || opt.MaxConcurrent != 3 || !opt.FailOnToolError {
		t.Fatalf("unexpected optimizer overrides: %+v", opt)
	}
	if opt.Naming != optimizer.NamingFixed {
		t.Fatalf("unexpected naming: %q", opt.Naming)
	}
	if len(opt.ExtraFlags) != 1 || opt.ExtraFlags[0] != "--language_out=ECMASCRIPT5" {
		t.Fatalf("unexpected extra flags: %v", opt.ExtraFlags)
	}
	if cfg.Server.Addr != "127.0.0.1:9400" || cfg.Server.ID != "closurectl" {
		t.Fatalf("unexpected server: %+v", cfg.Server)
	}
	if len(cfg.Server.CorsOrigins) != 1 {
		t.Fatalf("undefined cors origins must keep default, got %v", cfg.Server.CorsOrigins)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"level":       `compilation_level = "TURBO"`,
		"timeout":     `timeout = "soon"`,
		"concurrency": `max_concurrent = 0`,
		"unknown key": `runtim = "java"`,
		"empty addr":  "[server]\naddr = \"\"",
		"syntax":      `runtime = `,
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected load error", name)
		}
	}
}

func TestLoadOptionalFallsBackToDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, found, err := LoadOptional(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("load optional: %v", err)
	}
	if found {
		t.Fatalf("expected missing file to report found=false")
	}
	if cfg.Optimizer.Runtime != "java" {
		t.Fatalf("expected defaults, got %+v", cfg.Optimizer)
	}

	if _, _, err := LoadOptional(writeConfig(t, `timeout = "soon"`)); err == nil {
		t.Fatalf("expected parse errors to surface")
	}
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "closurectl.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	err := WriteTemplate(path, false)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected overwrite refusal, got %v", err)
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("forced overwrite: %v", err)
	}
}
