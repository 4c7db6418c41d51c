package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSink writes json or ndjson output to a file, creating parent
// directories as needed.
type FileSink struct {
	*structured
	path string
	file *os.File
}

// NewFileSink opens path for writing. An empty format is inferred from the
// file extension (.json, .ndjson, .jsonl).
func NewFileSink(path string, format string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("output path required")
	}

	if format == "" {
		ext := strings.ToLower(filepath.Ext(path))
		switch ext {
		case ".json":
			format = FormatJSON
		case ".ndjson", ".jsonl":
			format = FormatNDJSON
		default:
			return nil, fmt.Errorf("cannot infer output format from file extension %q", ext)
		}
	}
	if format != FormatJSON && format != FormatNDJSON {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	f, err := createWithDir(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	st, err := newStructured(f, format)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &FileSink{structured: st, path: path, file: f}, nil
}

func (s *FileSink) Write(v any) error {
	return s.write(v)
}

func (s *FileSink) Close() error {
	err := s.finish()
	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func createWithDir(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.Create(path)
}
