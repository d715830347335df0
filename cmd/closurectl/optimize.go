package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/danmuck/closurectl/internal/optimizer"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type optimizeOptions struct {
	level           string
	timeout         string
	failOnToolError bool
	quiet           bool
}

func newOptimizeCmd(root *rootOptions) *cobra.Command {
	opts := &optimizeOptions{}
	cmd := &cobra.Command{
		Use:   "optimize [file]",
		Short: "Optimize a script from a file or stdin and print the result",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			opt, err := opts.apply(cmd, cfg.Optimizer)
			if err != nil {
				return err
			}

			script, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			pipeline, err := optimizer.New(opt)
			if err != nil {
				return err
			}
			res, err := pipeline.Optimize(cmd.Context(), script)
			if err != nil {
				return err
			}

			if _, err := io.WriteString(cmd.OutOrStdout(), res.Output); err != nil {
				return err
			}
			if res.Diagnostics != "" {
				fmt.Fprint(cmd.ErrOrStderr(), res.Diagnostics)
			}
			if !opts.quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s -> %s (%s, exit %d, %s)\n",
					humanize.Bytes(uint64(res.InputBytes)),
					humanize.Bytes(uint64(res.OutputBytes)),
					savings(res.InputBytes, res.OutputBytes),
					res.ExitCode,
					res.Duration.Round(time.Millisecond),
				)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.level, "level", "l", string(optimizer.LevelAdvanced), "compilation level: WHITESPACE_ONLY|SIMPLE|ADVANCED")
	cmd.Flags().StringVar(&opts.timeout, "timeout", "", "compiler timeout, e.g. 30s (0 disables)")
	cmd.Flags().BoolVar(&opts.failOnToolError, "fail-on-tool-error", false, "fail when the compiler exits non-zero")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "suppress the size summary")
	return cmd
}

// apply overlays explicitly set flags onto the loaded config.
func (o *optimizeOptions) apply(cmd *cobra.Command, opt optimizer.Config) (optimizer.Config, error) {
	if cmd.Flags().Changed("level") {
		level, err := optimizer.ParseLevel(o.level)
		if err != nil {
			return optimizer.Config{}, err
		}
		opt.Level = level
	}
	if cmd.Flags().Changed("timeout") {
		d, err := parseDuration(o.timeout)
		if err != nil {
			return optimizer.Config{}, fmt.Errorf("parse --timeout: %w", err)
		}
		opt.Timeout = d
	}
	if cmd.Flags().Changed("fail-on-tool-error") {
		opt.FailOnToolError = o.failOnToolError
	}
	return opt, nil
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(raw), nil
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(raw), nil
}

func savings(in, out int) string {
	if in == 0 {
		return "n/a"
	}
	pct := 100 * float64(in-out) / float64(in)
	if pct < 0 {
		return fmt.Sprintf("%.1f%% larger", -pct)
	}
	return fmt.Sprintf("%.1f%% smaller", pct)
}

func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "0" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}
