package cli

import (
	"context"
	"fmt"
	"gitpuller/internal/config"
	"gitpuller/internal/engine"
	"gitpuller/internal/flags"
	"gitpuller/internal/logging"
	"gitpuller/internal/vcs"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

// newOpener builds the repository backend. Tests swap it for a fake.
var newOpener = func(remote string) vcs.Opener {
	return vcs.NewGoGitOpener(remote)
}

const rootLong = `gitpuller updates every git working copy that sits directly inside a parent
directory.

For each immediate child of <parent-directory> that is a non-bare git
repository with a clean working tree and a local copy of --branch, gitpuller
checks that branch out and pulls it from --remote. Everything else is skipped
with a log line explaining why. Repositories are processed in parallel by a
fixed pool of --workers.

Environment:
  GITPULLER_BRANCH    default for --branch
  GITPULLER_WORKERS   default for --workers
  Explicit flags always win over the environment.

Output:
  Logs go to stderr (--log-format text|json, --verbose for debug).
  Console output on stdout is controlled by --console-format (default: text).
  Structured outputs can be written via:
  - --out / --out-format: write an aggregate JSON array or NDJSON stream to a file
  - --emit: write an additional structured stream to stdout (json or ndjson)
  - --report: write a Markdown summary
  - --metrics-file: write Prometheus metrics for a node_exporter textfile collector
  - --no-console: suppress the console sink (use with --emit/--out for machine output)

Exit codes:
  0 = run completed (repositories may have been skipped or failed)
  1 = usage error or fatal error (run did not complete)
  2 = --strict and at least one repository failed

Examples:
  # Update every checkout under ~/src on develop
  gitpuller ~/src

  # Update master, eight at a time
  gitpuller -b master -w 8 ~/src

  # Only the service repos, machine readable
  gitpuller --include 'svc-*' --no-console --emit ndjson ~/src
`

func versionString() string {
	return fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
}

func newRootCmd(stdout, stderr io.Writer, exitCode *int) *cobra.Command {
	cfg := config.New()

	cmd := &cobra.Command{
		Use:           "gitpuller [flags] <parent-directory>",
		Short:         "Check out and pull one branch in every git repository under a directory",
		Long:          rootLong,
		Args:          cobra.MaximumNArgs(1),
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				*exitCode = engine.ExitFatal
				return nil
			}
			cfg.Target.ParentDir = args[0]

			env, err := config.LoadEnv(cmd.Flags().Changed)
			if err != nil {
				return err
			}
			cfg.ApplyEnv(env, cmd.Flags().Changed)

			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := logging.New(stderr, logging.Options{
				Format:  cfg.Runtime.LogFormat,
				Verbose: cfg.Runtime.Verbose,
				NoColor: cfg.Runtime.NoColor || !isTerminal(stderr),
			})
			logger.Debug("Parsing arguments",
				"parent", cfg.Target.ParentDir,
				"branch", cfg.Target.Branch,
				"remote", cfg.Target.Remote,
				"workers", cfg.Runtime.Workers,
				"queue_size", cfg.Runtime.QueueSize,
				"branch_match", cfg.Policy.BranchMatch,
			)

			eng := engine.NewEngine(newOpener(cfg.Target.Remote), logger)
			eng.Stdout = stdout
			*exitCode = eng.Run(cmd.Context(), cfg)
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("gitpuller {{.Version}}\n")

	registerFlags(cmd, cfg)
	return cmd
}

func registerFlags(cmd *cobra.Command, cfg *config.Config) {
	// Target
	cmd.Flags().StringVarP(&cfg.Target.Branch, flags.FlagBranch, "b", cfg.Target.Branch, "Local branch to check out and pull (env GITPULLER_BRANCH)")
	cmd.Flags().StringVar(&cfg.Target.Remote, flags.FlagRemote, cfg.Target.Remote, "Remote to pull from")
	cmd.Flags().StringSliceVar(&cfg.Target.Include, flags.FlagInclude, nil, "Only process children whose name matches a pattern (repeatable; comma-separated accepted; Go path.Match style)")
	cmd.Flags().StringSliceVar(&cfg.Target.Exclude, flags.FlagExclude, nil, "Skip children whose name matches a pattern (repeatable; comma-separated accepted)")

	// Policy
	cmd.Flags().StringVar(&cfg.Policy.BranchMatch, flags.FlagBranchMatch, cfg.Policy.BranchMatch, "How the local branch list is searched: scan|first (first only considers the first listed branch)")
	cmd.Flags().BoolVar(&cfg.Policy.Strict, flags.FlagStrict, false, "Exit with code 2 when any repository failed to update")

	// Output
	cmd.Flags().StringVar(&cfg.Output.ConsoleFormat, flags.FlagConsoleFormat, cfg.Output.ConsoleFormat, "Console output format: text|json|ndjson")
	cmd.Flags().BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output (use with --emit/--out/--report)")
	cmd.Flags().StringSliceVar(&cfg.Output.Emit, flags.FlagEmit, nil, "Emit additional structured stream to stdout: json|ndjson (repeatable; comma-separated accepted)")
	cmd.Flags().StringVar(&cfg.Output.Out, flags.FlagOut, "", "Write structured output to this path")
	cmd.Flags().StringVar(&cfg.Output.OutFormat, flags.FlagOutFormat, "", "Structured output format for --out: json|ndjson (default: inferred from file extension)")
	cmd.Flags().StringVar(&cfg.Output.Report, flags.FlagReport, "", "Write a Markdown report to this path")
	cmd.Flags().StringVar(&cfg.Output.MetricsFile, flags.FlagMetricsFile, "", "Write Prometheus metrics (text format) to this path")

	// Runtime
	cmd.Flags().IntVarP(&cfg.Runtime.Workers, flags.FlagWorkers, "w", cfg.Runtime.Workers, "Number of concurrent workers (env GITPULLER_WORKERS)")
	cmd.Flags().IntVar(&cfg.Runtime.QueueSize, flags.FlagQueueSize, cfg.Runtime.QueueSize, "Capacity of the work and result queues")
	cmd.Flags().DurationVar(&cfg.Runtime.TaskTimeout, flags.FlagTaskTimeout, cfg.Runtime.TaskTimeout, "Timeout for a single repository update (0 = none)")
	cmd.Flags().DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Global timeout for the whole run (0 = none)")
	cmd.Flags().BoolVar(&cfg.Runtime.Verbose, flags.FlagVerbose, false, "Enable debug logging")
	cmd.Flags().StringVar(&cfg.Runtime.LogFormat, flags.FlagLogFormat, cfg.Runtime.LogFormat, "Log format on stderr: text|json")
	cmd.Flags().BoolVar(&cfg.Runtime.NoColor, flags.FlagNoColor, false, "Disable colored output")
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

// Run executes the command line args and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if args == nil {
		// cobra falls back to os.Args for nil
		args = []string{}
	}
	code := engine.ExitOK
	cmd := newRootCmd(stdout, stderr, &code)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return engine.ExitFatal
	}
	return code
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
