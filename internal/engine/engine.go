package engine

import (
	"context"
	"errors"
	"fmt"
	"gitpuller/internal/config"
	"gitpuller/internal/metrics"
	"gitpuller/internal/output"
	"gitpuller/internal/vcs"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

const (
	ExitOK       = 0
	ExitFatal    = 1
	ExitFailures = 2
)

func exitCodeForRun(fatal, strictFailures bool) int {
	// Exit code contract:
	// 0 = run completed (individual repositories may have been skipped or failed)
	// 1 = fatal error (bad arguments, unreadable parent directory, sink setup)
	// 2 = --strict and at least one repository failed
	if fatal {
		return ExitFatal
	}
	if strictFailures {
		return ExitFailures
	}
	return ExitOK
}

// setupOutputManager builds one sink per configured output. On error every
// sink opened so far is closed again.
func setupOutputManager(cfg *config.Config, stdout io.Writer) (*output.Manager, error) {
	var opens []func() (output.Sink, error)

	if !cfg.Output.NoConsole {
		opens = append(opens, func() (output.Sink, error) {
			return output.NewConsoleSink(stdout, cfg.Output.ConsoleFormat, cfg.Runtime.NoColor), nil
		})
	}
	for _, format := range cfg.Output.Emit {
		opens = append(opens, func() (output.Sink, error) { return output.NewEmitSink(stdout, format) })
	}
	if cfg.Output.Out != "" {
		opens = append(opens, func() (output.Sink, error) { return output.NewFileSink(cfg.Output.Out, cfg.Output.OutFormat) })
	}
	if cfg.Output.Report != "" {
		opens = append(opens, func() (output.Sink, error) { return output.NewReportSink(cfg.Output.Report) })
	}
	if cfg.Output.MetricsFile != "" {
		opens = append(opens, func() (output.Sink, error) { return metrics.NewSink(cfg.Output.MetricsFile) })
	}

	outMgr := output.NewManager()
	for _, open := range opens {
		sink, err := open()
		if err == nil {
			err = outMgr.AddSink(sink)
		}
		if err != nil {
			_ = outMgr.Close()
			return nil, err
		}
	}
	return outMgr, nil
}

func resultFromOutcome(o Outcome) output.RepoResult {
	r := output.RepoResult{
		Path:       o.Path,
		Status:     string(o.Status),
		Reason:     string(o.Reason),
		DurationMS: o.Duration.Milliseconds(),
	}
	if o.Err != nil {
		r.Error = o.Err.Error()
	}
	return r
}

func runSummary(s Summary) *output.RunSummary {
	return &output.RunSummary{
		Total:      s.Total,
		Updated:    s.Updated,
		Skipped:    s.Skipped,
		Failed:     s.Failed,
		DurationMS: s.Duration.Milliseconds(),
	}
}

type Engine struct {
	Opener vcs.Opener
	Logger *slog.Logger

	// Stdout receives the console and --emit sinks. Defaults to os.Stdout.
	Stdout io.Writer
}

func NewEngine(opener vcs.Opener, logger *slog.Logger) *Engine {
	return &Engine{
		Opener: opener,
		Logger: logger,
		Stdout: os.Stdout,
	}
}

func (e *Engine) newDispatcher(cfg *config.Config, observe func(Outcome)) (*Dispatcher, error) {
	updater, err := NewUpdater(e.Opener, e.Logger,
		WithBranchMatch(cfg.Policy.BranchMatch),
		WithTaskTimeout(cfg.Runtime.TaskTimeout),
	)
	if err != nil {
		return nil, err
	}
	return NewDispatcher(updater, e.Logger,
		WithWorkers(cfg.Runtime.Workers),
		WithQueueSize(cfg.Runtime.QueueSize),
		WithNameFilter(cfg.Target.Include, cfg.Target.Exclude),
		WithObserver(observe),
	)
}

// Run performs one update run described by cfg (which must already be
// validated) and returns the process exit code.
func (e *Engine) Run(ctx context.Context, cfg *config.Config) int {
	if e.Logger == nil {
		e.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if e.Opener == nil {
		e.Logger.Error("No repository opener configured")
		return exitCodeForRun(true, false)
	}
	if cfg.Runtime.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Runtime.Timeout)
		defer cancel()
	}

	outMgr, err := setupOutputManager(cfg, e.Stdout)
	if err != nil {
		e.Logger.Error("Failed to create output sinks", "error", err)
		return exitCodeForRun(true, false)
	}
	defer func() {
		if err := outMgr.Close(); err != nil {
			e.Logger.Error("Failed to close output sinks", "error", err)
		}
	}()

	dispatcher, err := e.newDispatcher(cfg, func(o Outcome) {
		_ = outMgr.Write(output.Event{Type: output.EventRepoFinished, RepoResult: ptr(resultFromOutcome(o))})
	})
	if err != nil {
		e.Logger.Error("Failed to create worker pool", "error", err)
		return exitCodeForRun(true, false)
	}

	runID := uuid.NewString()
	parent, branch := cfg.Target.ParentDir, cfg.Target.Branch
	e.Logger.Info(fmt.Sprintf("Updating git repositories in %q", parent), "branch", branch, "run", runID)
	_ = outMgr.Write(output.Event{Type: output.EventRunStarted, RunID: runID, Parent: parent, Branch: branch})

	summary, err := dispatcher.Run(ctx, parent, branch)
	if err != nil {
		e.Logger.Error("Failed to list parent directory", "error", err)
		code := exitCodeForRun(true, false)
		_ = outMgr.Write(output.Event{Type: output.EventRunFinished, RunID: runID, Summary: runSummary(summary), ExitCode: code})
		return code
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		e.Logger.Warn("Run timed out before every repository was updated", "timeout", cfg.Runtime.Timeout)
	}

	e.Logger.Info(fmt.Sprintf("Done, updated %d of %d repositories", summary.Updated, summary.Total),
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration", summary.Duration,
	)

	code := exitCodeForRun(false, cfg.Policy.Strict && summary.Failed > 0)
	_ = outMgr.Write(output.Event{Type: output.EventRunFinished, RunID: runID, Summary: runSummary(summary), ExitCode: code})
	return code
}

func ptr[T any](v T) *T {
	return &v
}
