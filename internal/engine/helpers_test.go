package engine

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
)

// logRecorder captures JSON log records for assertions on level and message.
type logRecorder struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (r *logRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

func newTestLogger() (*slog.Logger, *logRecorder) {
	rec := &logRecorder{}
	return slog.New(slog.NewJSONHandler(rec, &slog.HandlerOptions{Level: slog.LevelDebug})), rec
}

type logRecord struct {
	Level string `json:"level"`
	Msg   string `json:"msg"`
	Path  string `json:"path"`
	Error string `json:"error"`
}

func (r *logRecorder) records(t *testing.T) []logRecord {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []logRecord
	sc := bufio.NewScanner(bytes.NewReader(r.buf.Bytes()))
	for sc.Scan() {
		var rec logRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("invalid log line %q: %v", sc.Text(), err)
		}
		out = append(out, rec)
	}
	return out
}

// find returns the first record with msg.
func (r *logRecorder) find(t *testing.T, msg string) (logRecord, bool) {
	t.Helper()
	for _, rec := range r.records(t) {
		if rec.Msg == msg {
			return rec, true
		}
	}
	return logRecord{}, false
}

// all returns every attribute of each record with msg.
func (r *logRecorder) all(t *testing.T, msg string) []map[string]any {
	t.Helper()
	r.mu.Lock()
	data := append([]byte(nil), r.buf.Bytes()...)
	r.mu.Unlock()

	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("invalid log line %q: %v", sc.Text(), err)
		}
		if m["msg"] == msg {
			out = append(out, m)
		}
	}
	return out
}

// mustFind returns every attribute of the first record with msg, failing the
// test when there is none.
func (r *logRecorder) mustFind(t *testing.T, msg string) map[string]any {
	t.Helper()
	got := r.all(t, msg)
	if len(got) == 0 {
		t.Fatalf("no log record with msg %q", msg)
	}
	return got[0]
}
