package output

import (
	"fmt"
	"io"
)

// EmitSink writes an additional structured stream, typically to stdout next
// to (or instead of) the console sink.
//
// Formats:
//   - json: aggregates repository results and writes a single JSON array on Close
//   - ndjson: streams Event values (one JSON object per line)
type EmitSink struct {
	*structured
}

func NewEmitSink(w io.Writer, format string) (*EmitSink, error) {
	if w == nil {
		return nil, fmt.Errorf("emit sink writer must not be nil")
	}
	st, err := newStructured(w, format)
	if err != nil {
		return nil, fmt.Errorf("emit: %w", err)
	}
	return &EmitSink{structured: st}, nil
}

func (s *EmitSink) Write(v any) error {
	return s.write(v)
}

func (s *EmitSink) Close() error {
	return s.finish()
}
