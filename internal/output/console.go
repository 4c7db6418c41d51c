package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

type ConsoleSink struct {
	writer  io.Writer
	format  string // "text", "json", "ndjson"
	mu      sync.Mutex
	results []RepoResult // For JSON array output

	updated *color.Color
	skipped *color.Color
	failed  *color.Color
	bold    *color.Color
}

// NewConsoleSink writes to w (stdout when nil). In text mode each repository
// gets one status line and the run ends with a summary line.
func NewConsoleSink(w io.Writer, format string, noColor bool) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}

	s := &ConsoleSink{
		writer:  w,
		format:  format,
		results: []RepoResult{},
		updated: color.New(color.FgGreen),
		skipped: color.New(color.FgYellow),
		failed:  color.New(color.FgRed, color.Bold),
		bold:    color.New(color.Bold),
	}
	if noColor {
		for _, c := range []*color.Color{s.updated, s.skipped, s.failed, s.bold} {
			c.DisableColor()
		}
	}
	return s
}

func (s *ConsoleSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(v)
}

func (s *ConsoleSink) writeLocked(v any) error {
	switch s.format {
	case "json":
		if r, ok := resultOf(v); ok {
			s.results = append(s.results, r)
		}
		return nil
	case "ndjson":
		return encodeEvent(s.writer, v)
	case "text":
		if r, ok := resultOf(v); ok {
			if err := s.writeResult(r); err != nil {
				return err
			}
			return flush(s.writer)
		}
		if e, ok := v.(Event); ok && e.Type == EventRunFinished && e.Summary != nil {
			if err := s.writeSummary(*e.Summary); err != nil {
				return err
			}
			return flush(s.writer)
		}
		// Ignore other events in text mode.
		return nil
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func (s *ConsoleSink) writeResult(r RepoResult) error {
	label := "[" + strings.ToUpper(r.Status) + "]"
	var err error
	switch r.Status {
	case "updated":
		_, err = s.updated.Fprint(s.writer, label)
	case "skipped":
		_, err = s.skipped.Fprint(s.writer, label)
	case "failed":
		_, err = s.failed.Fprint(s.writer, label)
	default:
		_, err = fmt.Fprint(s.writer, label)
	}
	if err != nil {
		return err
	}

	line := " " + r.Path
	switch {
	case r.Error != "":
		line += ": " + r.Error
	case r.Reason != "":
		line += " (" + r.Reason + ")"
	}
	_, err = fmt.Fprintln(s.writer, line)
	return err
}

func (s *ConsoleSink) writeSummary(sum RunSummary) error {
	if _, err := s.bold.Fprintf(s.writer, "Updated %d of %d repositories", sum.Updated, sum.Total); err != nil {
		return err
	}
	_, err := fmt.Fprintf(s.writer, " (%d skipped, %d failed)\n", sum.Skipped, sum.Failed)
	return err
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case "json":
		return encodeResults(s.writer, s.results)
	case "text", "ndjson":
		return nil
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}
