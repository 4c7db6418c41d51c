package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// ReportSink renders a Markdown report of one run on Close.
type ReportSink struct {
	path    string
	file    *os.File
	mu      sync.Mutex
	started Event
	results []RepoResult
	summary *RunSummary
	code    int
}

func NewReportSink(path string) (*ReportSink, error) {
	if path == "" {
		return nil, fmt.Errorf("report path required")
	}

	f, err := createWithDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}

	return &ReportSink{path: path, file: f}, nil
}

func (s *ReportSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := resultOf(v); ok {
		s.results = append(s.results, r)
		return nil
	}
	if e, ok := v.(Event); ok {
		switch e.Type {
		case EventRunStarted:
			s.started = e
		case EventRunFinished:
			s.summary = e.Summary
			s.code = e.ExitCode
		}
	}
	return nil
}

func (s *ReportSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.file.WriteString(s.render())
	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func (s *ReportSink) render() string {
	var b strings.Builder
	b.WriteString("# gitpuller report\n\n")
	if s.started.RunID != "" {
		fmt.Fprintf(&b, "- Run: `%s`\n", s.started.RunID)
	}
	if s.started.Parent != "" {
		fmt.Fprintf(&b, "- Parent directory: `%s`\n", s.started.Parent)
	}
	if s.started.Branch != "" {
		fmt.Fprintf(&b, "- Branch: `%s`\n", s.started.Branch)
	}
	if s.summary != nil {
		fmt.Fprintf(&b, "- Duration: %s\n", (time.Duration(s.summary.DurationMS) * time.Millisecond).String())
		fmt.Fprintf(&b, "- Exit code: %d\n", s.code)
		b.WriteString("\n## Summary\n\n")
		b.WriteString("| Total | Updated | Skipped | Failed |\n")
		b.WriteString("|---:|---:|---:|---:|\n")
		fmt.Fprintf(&b, "| %d | %d | %d | %d |\n", s.summary.Total, s.summary.Updated, s.summary.Skipped, s.summary.Failed)
	}

	b.WriteString("\n## Repositories\n\n")
	if len(s.results) == 0 {
		b.WriteString("_No repositories processed._\n")
		return b.String()
	}

	results := append([]RepoResult(nil), s.results...)
	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })

	b.WriteString("| Repository | Status | Detail |\n")
	b.WriteString("|---|---|---|\n")
	for _, r := range results {
		detail := r.Reason
		if r.Error != "" {
			detail = r.Error
		}
		fmt.Fprintf(&b, "| `%s` | %s | %s |\n", r.Path, r.Status, escapeCell(detail))
	}
	return b.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
