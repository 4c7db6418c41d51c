package flags

// Package flags defines canonical CLI flag names shared across the CLI and the
// config layer. Keeping these as constants avoids drift between Cobra flag
// wiring and code that asks whether a flag was set explicitly (e.g. environment
// defaults).
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().StringVarP(&cfg.Target.Branch, flags.FlagBranch, "b", "develop", "...")
//	arg := "--" + flags.FlagBranch
const (
	// Target
	FlagBranch  = "branch"
	FlagRemote  = "remote"
	FlagInclude = "include"
	FlagExclude = "exclude"

	// Policy
	FlagBranchMatch = "branch-match"
	FlagStrict      = "strict"

	// Output
	FlagConsoleFormat = "console-format"
	FlagNoConsole     = "no-console"
	FlagEmit          = "emit"
	FlagOut           = "out"
	FlagOutFormat     = "out-format"
	FlagReport        = "report"
	FlagMetricsFile   = "metrics-file"

	// Runtime
	FlagWorkers     = "workers"
	FlagQueueSize   = "queue-size"
	FlagTaskTimeout = "task-timeout"
	FlagTimeout     = "timeout"
	FlagVerbose     = "verbose"
	FlagLogFormat   = "log-format"
	FlagNoColor     = "no-color"
)
