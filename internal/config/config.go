package config

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	BranchMatchScan  = "scan"
	BranchMatchFirst = "first"
)

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields, keep the CLI
	// flags in internal/cli/root.go and the names in internal/flags in sync.
	Target  Target
	Policy  Policy
	Output  Output
	Runtime Runtime
}

type Target struct {
	// ParentDir is the directory whose immediate children are candidate
	// working copies (positional argument).
	ParentDir string

	// Branch is the local branch to check out and pull (see --branch).
	Branch string

	// Remote is the remote pulled from (see --remote).
	Remote string

	// Include keeps only children whose name matches at least one pattern
	// (Go path.Match style; see --include).
	Include []string

	// Exclude drops children whose name matches any pattern (see --exclude).
	Exclude []string
}

type Policy struct {
	// BranchMatch selects how the local branch list is searched (see --branch-match).
	// Allowed values: scan, first.
	BranchMatch string

	// Strict makes the run exit non-zero when any repository failed (see --strict).
	Strict bool
}

type Output struct {
	// ConsoleFormat controls the console sink format (see --console-format).
	// Allowed values: text, json, ndjson.
	ConsoleFormat string

	// NoConsole suppresses the console sink (see --no-console).
	NoConsole bool

	// Emit writes an additional structured stream to stdout (see --emit).
	// Allowed values: json, ndjson.
	Emit []string

	// Out writes structured output to this path (see --out).
	Out string

	// OutFormat selects the format for --out (see --out-format).
	// If empty, it is inferred from the --out file extension.
	OutFormat string

	// Report writes a Markdown run report to this path (see --report).
	Report string

	// MetricsFile writes Prometheus metrics in text exposition format (see --metrics-file).
	MetricsFile string
}

type Runtime struct {
	// Workers is the fixed worker pool size (see --workers). Must be >= 1.
	Workers int

	// QueueSize bounds the work queue and the results channel (see --queue-size).
	QueueSize int

	// TaskTimeout bounds a single repository update (see --task-timeout). 0 disables it.
	TaskTimeout time.Duration

	// Timeout bounds the whole run (see --timeout). 0 disables it.
	Timeout time.Duration

	// Verbose enables debug logging (see --verbose).
	Verbose bool

	// LogFormat selects the log handler (see --log-format).
	// Allowed values: text, json.
	LogFormat string

	// NoColor disables ANSI colors in logs and console output (see --no-color).
	NoColor bool
}

func New() *Config {
	return &Config{
		Target: Target{
			Branch: "develop",
			Remote: "origin",
		},
		Policy: Policy{
			BranchMatch: BranchMatchScan,
		},
		Output: Output{
			ConsoleFormat: "text",
		},
		Runtime: Runtime{
			Workers:     5,
			QueueSize:   500,
			TaskTimeout: 10 * time.Minute,
			LogFormat:   "text",
		},
	}
}

func (c *Config) Validate() error {
	// Normalize comma-delimited list inputs.
	c.Target.Include = splitCommaList(c.Target.Include)
	c.Target.Exclude = splitCommaList(c.Target.Exclude)
	c.Output.Emit = splitCommaList(c.Output.Emit)

	// Target validation
	c.Target.ParentDir = strings.TrimSpace(c.Target.ParentDir)
	if c.Target.ParentDir == "" {
		return errors.New("parent-directory must be provided")
	}
	c.Target.Branch = strings.TrimSpace(c.Target.Branch)
	if c.Target.Branch == "" {
		return errors.New("--branch must not be empty")
	}
	c.Target.Remote = strings.TrimSpace(c.Target.Remote)
	if c.Target.Remote == "" {
		return errors.New("--remote must not be empty")
	}
	for _, p := range append(append([]string(nil), c.Target.Include...), c.Target.Exclude...) {
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}

	// Policy validation
	c.Policy.BranchMatch = normalizeEnumValue(c.Policy.BranchMatch)
	if c.Policy.BranchMatch == "" {
		c.Policy.BranchMatch = BranchMatchScan
	}
	if c.Policy.BranchMatch != BranchMatchScan && c.Policy.BranchMatch != BranchMatchFirst {
		return fmt.Errorf("unsupported --branch-match: %s (must be one of: scan, first)", c.Policy.BranchMatch)
	}

	// Output validation
	c.Output.ConsoleFormat = normalizeEnumValue(c.Output.ConsoleFormat)
	if c.Output.ConsoleFormat == "" {
		return errors.New("--console-format must be one of: text, json, ndjson")
	}
	if c.Output.ConsoleFormat != "text" && c.Output.ConsoleFormat != "json" && c.Output.ConsoleFormat != "ndjson" {
		return fmt.Errorf("unsupported --console-format: %s (must be one of: text, json, ndjson)", c.Output.ConsoleFormat)
	}

	for i, emit := range c.Output.Emit {
		v := normalizeEnumValue(emit)
		if v != "json" && v != "ndjson" {
			return fmt.Errorf("unsupported --emit value: %s (must be one of: json, ndjson)", v)
		}
		c.Output.Emit[i] = v
	}

	if c.Output.Out != "" {
		c.Output.OutFormat = normalizeEnumValue(c.Output.OutFormat)
		if c.Output.OutFormat == "" {
			ext := strings.ToLower(filepath.Ext(c.Output.Out))
			switch ext {
			case ".json":
				c.Output.OutFormat = "json"
			case ".ndjson", ".jsonl":
				c.Output.OutFormat = "ndjson"
			default:
				if ext == "" {
					return errors.New("cannot infer output format from file extension (missing extension); use --out-format")
				}
				return fmt.Errorf("cannot infer output format from file extension %q; use --out-format", ext)
			}
		} else if c.Output.OutFormat != "json" && c.Output.OutFormat != "ndjson" {
			return fmt.Errorf("unsupported output format: %s", c.Output.OutFormat)
		}
	}

	// Runtime validation
	if c.Runtime.Workers <= 0 {
		return errors.New("--workers must be >= 1")
	}
	if c.Runtime.QueueSize <= 0 {
		return errors.New("--queue-size must be >= 1")
	}
	if c.Runtime.TaskTimeout < 0 {
		return errors.New("--task-timeout must be >= 0")
	}
	if c.Runtime.Timeout < 0 {
		return errors.New("--timeout must be >= 0")
	}
	c.Runtime.LogFormat = normalizeEnumValue(c.Runtime.LogFormat)
	if c.Runtime.LogFormat == "" {
		c.Runtime.LogFormat = "text"
	}
	if c.Runtime.LogFormat != "text" && c.Runtime.LogFormat != "json" {
		return fmt.Errorf("unsupported --log-format: %s (must be one of: text, json)", c.Runtime.LogFormat)
	}

	return nil
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
