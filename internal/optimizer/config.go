package optimizer

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/danmuck/closurectl/internal/scratch"
)

// Level is a Closure Compiler --compilation_level value.
type Level string

const (
	LevelWhitespaceOnly Level = "WHITESPACE_ONLY"
	LevelSimple         Level = "SIMPLE"
	LevelAdvanced       Level = "ADVANCED"
)

// ParseLevel accepts the compiler's spellings, case-insensitively.
func ParseLevel(raw string) (Level, error) {
	switch Level(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", LevelAdvanced:
		return LevelAdvanced, nil
	case LevelSimple, "SIMPLE_OPTIMIZATIONS":
		return LevelSimple, nil
	case LevelWhitespaceOnly:
		return LevelWhitespaceOnly, nil
	case "ADVANCED_OPTIMIZATIONS":
		return LevelAdvanced, nil
	default:
		return "", fmt.Errorf("%w: unknown compilation level %q", ErrInvalidConfig, raw)
	}
}

// Naming selects how artifact names are generated.
type Naming string

const (
	NamingUnique Naming = "unique"
	NamingFixed  Naming = "fixed"
)

const (
	DefaultRuntime     = "java"
	DefaultCompilerJar = "./closure-compiler/closure-compiler-v20170910.jar"
	DefaultTimeout     = 60 * time.Second
	FixedArtifactName  = "input.js"
)

// Config describes how to reach the compiler and where to stage input.
type Config struct {
	Runtime         string
	CompilerJar     string
	ScratchDir      string
	Level           Level
	Timeout         time.Duration
	MaxConcurrent   int
	FailOnToolError bool
	Naming          Naming
	ExtraFlags      []string
}

func DefaultConfig() Config {
	return Config{
		Runtime:       DefaultRuntime,
		CompilerJar:   DefaultCompilerJar,
		ScratchDir:    scratch.DefaultDir,
		Level:         LevelAdvanced,
		Timeout:       DefaultTimeout,
		MaxConcurrent: 1,
		Naming:        NamingUnique,
	}
}

// Validate checks required fields. A zero Timeout disables the deadline.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Runtime) == "" {
		return fmt.Errorf("%w: runtime is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.CompilerJar) == "" {
		return fmt.Errorf("%w: compiler_jar is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.ScratchDir) == "" {
		return fmt.Errorf("%w: scratch_dir is required", ErrInvalidConfig)
	}
	if _, err := ParseLevel(string(c.Level)); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("%w: max_concurrent must be at least 1", ErrInvalidConfig)
	}
	switch c.Naming {
	case "", NamingUnique, NamingFixed:
	default:
		return fmt.Errorf("%w: unknown artifact naming %q", ErrInvalidConfig, c.Naming)
	}
	for _, flag := range c.ExtraFlags {
		if isReservedFlag(flag) {
			return fmt.Errorf("%w: extra flag %q is managed by the optimizer", ErrInvalidConfig, flag)
		}
	}
	return nil
}

// Args renders the compiler arguments for one staged input.
func (c Config) Args(inputPath string) []string {
	level, err := ParseLevel(string(c.Level))
	if err != nil {
		level = LevelAdvanced
	}
	args := []string{"-jar", c.CompilerJar, "--js", inputPath, "--compilation_level", string(level)}
	return append(args, slices.Clone(c.ExtraFlags)...)
}

func isReservedFlag(flag string) bool {
	name, _, _ := strings.Cut(strings.TrimSpace(flag), "=")
	switch name {
	case "-jar", "--js", "--compilation_level", "--js_output_file":
		return true
	default:
		return false
	}
}
