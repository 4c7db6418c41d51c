package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

const (
	FormatJSON   = "json"
	FormatNDJSON = "ndjson"
)

// structured is the json/ndjson behaviour shared by the emit and file sinks.
// json collects RepoResults and writes one array on finish; ndjson streams
// every Event as it arrives.
type structured struct {
	mu      sync.Mutex
	w       io.Writer
	format  string
	results []RepoResult
}

func newStructured(w io.Writer, format string) (*structured, error) {
	if format != FormatJSON && format != FormatNDJSON {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
	return &structured{w: w, format: format, results: []RepoResult{}}, nil
}

func (s *structured) write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == FormatNDJSON {
		return encodeEvent(s.w, v)
	}
	if r, ok := resultOf(v); ok {
		s.results = append(s.results, r)
	}
	return nil
}

func (s *structured) finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == FormatJSON {
		return encodeResults(s.w, s.results)
	}
	return nil
}

// encodeEvent writes v as one NDJSON line. Values that are neither Event nor
// RepoResult are ignored.
func encodeEvent(w io.Writer, v any) error {
	var e Event
	switch t := v.(type) {
	case Event:
		e = t
	case RepoResult:
		e = eventFromResult(t)
	default:
		return nil
	}
	if err := json.NewEncoder(w).Encode(e); err != nil {
		return err
	}
	return flush(w)
}

func encodeResults(w io.Writer, results []RepoResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(results); err != nil {
		return err
	}
	return flush(w)
}

// flush pushes buffered bytes through writers such as *bufio.Writer so a
// consumer reading the stream sees each line as soon as it is encoded.
func flush(w io.Writer) error {
	if f, ok := w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
