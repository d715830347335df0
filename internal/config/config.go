package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/closurectl/internal/optimizer"
)

const DefaultPath = "closurectl.toml"

// Config is the resolved closurectl configuration.
type Config struct {
	Optimizer optimizer.Config
	Server    ServerConfig
}

type ServerConfig struct {
	ID          string
	Addr        string
	CorsOrigins []string
}

type fileConfig struct {
	Runtime          string     `toml:"runtime"`
	CompilerJar      string     `toml:"compiler_jar"`
	ScratchDir       string     `toml:"scratch_dir"`
	CompilationLevel string     `toml:"compilation_level"`
	Timeout          string     `toml:"timeout"`
	MaxConcurrent    int        `toml:"max_concurrent"`
	FailOnToolError  bool       `toml:"fail_on_tool_error"`
	ArtifactNaming   string     `toml:"artifact_naming"`
	ExtraFlags       []string   `toml:"extra_flags"`
	Server           fileServer `toml:"server"`
}

type fileServer struct {
	ID          string   `toml:"id"`
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
}

func DefaultConfig() Config {
	return Config{
		Optimizer: optimizer.DefaultConfig(),
		Server: ServerConfig{
			ID:          "closurectl",
			Addr:        ":9300",
			CorsOrigins: []string{"http://localhost:3000"},
		},
	}
}

// Load overlays the TOML file at path onto DefaultConfig and validates the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	opt := &cfg.Optimizer
	if meta.IsDefined("runtime") {
		opt.Runtime = strings.TrimSpace(raw.Runtime)
	}
	if meta.IsDefined("compiler_jar") {
		opt.CompilerJar = strings.TrimSpace(raw.CompilerJar)
	}
	if meta.IsDefined("scratch_dir") {
		opt.ScratchDir = strings.TrimSpace(raw.ScratchDir)
	}
	if meta.IsDefined("compilation_level") {
		level, err := optimizer.ParseLevel(raw.CompilationLevel)
		if err != nil {
			return Config{}, fmt.Errorf("parse compilation_level: %w", err)
		}
		opt.Level = level
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		opt.Timeout = d
	}
	if meta.IsDefined("max_concurrent") {
		opt.MaxConcurrent = raw.MaxConcurrent
	}
	if meta.IsDefined("fail_on_tool_error") {
		opt.FailOnToolError = raw.FailOnToolError
	}
	if meta.IsDefined("artifact_naming") {
		opt.Naming = optimizer.Naming(strings.ToLower(strings.TrimSpace(raw.ArtifactNaming)))
	}
	if meta.IsDefined("extra_flags") {
		opt.ExtraFlags = normalizeList(raw.ExtraFlags)
	}

	if meta.IsDefined("server", "id") {
		cfg.Server.ID = strings.TrimSpace(raw.Server.ID)
	}
	if meta.IsDefined("server", "addr") {
		cfg.Server.Addr = strings.TrimSpace(raw.Server.Addr)
	}
	if meta.IsDefined("server", "cors_origins") {
		cfg.Server.CorsOrigins = normalizeList(raw.Server.CorsOrigins)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadOptional is Load, except a missing file yields DefaultConfig.
func LoadOptional(path string) (Config, bool, error) {
	cfg, err := Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), false, nil
	}
	if err != nil {
		return Config{}, false, err
	}
	return cfg, true, nil
}

func Validate(cfg Config) error {
	if err := cfg.Optimizer.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Server.ID) == "" {
		return fmt.Errorf("server config missing id")
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return fmt.Errorf("server config missing addr")
	}
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
