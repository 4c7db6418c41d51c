package engine

import (
	"context"
	"errors"
	"fmt"
	"gitpuller/internal/vcs/vcstest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"
)

// countingUpdater records every path it is asked to update.
type countingUpdater struct {
	mu     sync.Mutex
	calls  map[string]int
	status func(path string) Status
	delay  time.Duration
}

func newCountingUpdater() *countingUpdater {
	return &countingUpdater{calls: make(map[string]int)}
}

func (u *countingUpdater) Update(_ context.Context, path, _ string) Outcome {
	if u.delay > 0 {
		time.Sleep(u.delay)
	}
	u.mu.Lock()
	u.calls[path]++
	u.mu.Unlock()

	st := StatusUpdated
	if u.status != nil {
		st = u.status(path)
	}
	switch st {
	case StatusSkipped:
		return skipped(path, ReasonNotARepository)
	case StatusFailed:
		return failed(path, errors.New("boom"))
	}
	return updated(path)
}

func (u *countingUpdater) callsFor(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls[path]
}

func newTestDispatcher(t *testing.T, u RepositoryUpdater, opts ...DispatcherOption) *Dispatcher {
	t.Helper()
	logger, _ := newTestLogger()
	d, err := NewDispatcher(u, logger, opts...)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return d
}

func makePaths(n int) []string {
	paths := make([]string, n)
	for i := range paths {
		paths[i] = fmt.Sprintf("/src/repo-%03d", i)
	}
	return paths
}

// dispatchWithDeadline fails the test instead of hanging if the pool deadlocks.
func dispatchWithDeadline(t *testing.T, d *Dispatcher, ctx context.Context, paths []string) Summary {
	t.Helper()
	done := make(chan Summary, 1)
	go func() { done <- d.Dispatch(ctx, paths, "develop") }()
	select {
	case s := <-done:
		return s
	case <-time.After(10 * time.Second):
		t.Fatal("Dispatch did not return; worker pool deadlocked")
		return Summary{}
	}
}

func TestDispatcher_EveryTaskYieldsExactlyOneOutcome(t *testing.T) {
	u := newCountingUpdater()
	var mu sync.Mutex
	var observed []string
	d := newTestDispatcher(t, u, WithWorkers(4), WithObserver(func(o Outcome) {
		mu.Lock()
		observed = append(observed, o.Path)
		mu.Unlock()
	}))

	paths := makePaths(137)
	s := dispatchWithDeadline(t, d, context.Background(), paths)

	if s.Total != len(paths) {
		t.Fatalf("Total = %d, want %d", s.Total, len(paths))
	}
	for _, p := range paths {
		if n := u.callsFor(p); n != 1 {
			t.Fatalf("path %s processed %d times, want 1", p, n)
		}
	}
	sort.Strings(observed)
	if len(observed) != len(paths) {
		t.Fatalf("observer saw %d outcomes, want %d", len(observed), len(paths))
	}
	for i := range paths {
		if observed[i] != paths[i] {
			t.Fatalf("observer outcome %d = %s, want %s", i, observed[i], paths[i])
		}
	}
}

func TestDispatcher_UpdatedCountIndependentOfPoolSize(t *testing.T) {
	const n, k = 40, 13
	paths := makePaths(n)

	for _, workers := range []int{1, 5, 50} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			opener := vcstest.NewOpener()
			for i, p := range paths {
				switch {
				case i < k:
					opener.Add(p, &vcstest.Repo{Branches: []string{"develop"}})
				case i%3 == 0:
					opener.Add(p, &vcstest.Repo{Dirty: true, Branches: []string{"develop"}})
				case i%3 == 1:
					opener.Add(p, &vcstest.Repo{Branches: []string{"develop"}, PullErr: errors.New("conflict")})
				default:
					// not registered: not a repository
				}
			}
			logger, _ := newTestLogger()
			u, err := NewUpdater(opener, logger)
			if err != nil {
				t.Fatalf("NewUpdater: %v", err)
			}
			d := newTestDispatcher(t, u, WithWorkers(workers))

			s := dispatchWithDeadline(t, d, context.Background(), paths)
			if s.Updated != k {
				t.Fatalf("Updated = %d, want %d", s.Updated, k)
			}
			if s.Total != n || s.Updated+s.Skipped+s.Failed != n {
				t.Fatalf("inconsistent summary: %+v", s)
			}
			if opener.TotalOpens() != n {
				t.Fatalf("opens = %d, want %d", opener.TotalOpens(), n)
			}
		})
	}
}

func TestDispatcher_SmallQueueDoesNotDeadlock(t *testing.T) {
	u := newCountingUpdater()
	u.delay = time.Millisecond
	d := newTestDispatcher(t, u, WithWorkers(3), WithQueueSize(2))

	s := dispatchWithDeadline(t, d, context.Background(), makePaths(10))
	if s.Total != 10 || s.Updated != 10 {
		t.Fatalf("summary = %+v, want 10 of 10", s)
	}
}

func TestDispatcher_QueueSmallerThanPoolAndSingleWorker(t *testing.T) {
	u := newCountingUpdater()
	d := newTestDispatcher(t, u, WithWorkers(1), WithQueueSize(1))

	s := dispatchWithDeadline(t, d, context.Background(), makePaths(25))
	if s.Total != 25 {
		t.Fatalf("Total = %d, want 25", s.Total)
	}
}

func TestDispatcher_FailuresDoNotAbortRun(t *testing.T) {
	paths := makePaths(20)
	u := newCountingUpdater()
	u.status = func(path string) Status {
		if path == paths[3] || path == paths[11] {
			return StatusFailed
		}
		return StatusUpdated
	}
	d := newTestDispatcher(t, u, WithWorkers(2))

	s := dispatchWithDeadline(t, d, context.Background(), paths)
	if s.Failed != 2 || s.Updated != 18 || s.Total != 20 {
		t.Fatalf("summary = %+v, want 18 updated, 2 failed", s)
	}
}

func TestDispatcher_RecoversPanickingUpdate(t *testing.T) {
	paths := makePaths(5)
	u := newCountingUpdater()
	u.status = func(path string) Status {
		if path == paths[2] {
			panic("corrupt object")
		}
		return StatusUpdated
	}
	d := newTestDispatcher(t, u, WithWorkers(2))

	s := dispatchWithDeadline(t, d, context.Background(), paths)
	if s.Total != 5 || s.Failed != 1 || s.Updated != 4 {
		t.Fatalf("summary = %+v, want 4 updated, 1 failed", s)
	}
}

func TestDispatcher_CancelledContextStillAccountsForEveryTask(t *testing.T) {
	u := newCountingUpdater()
	var outcomes []Outcome
	logger, rec := newTestLogger()
	d, err := NewDispatcher(u, logger, WithWorkers(3), WithQueueSize(4), WithObserver(func(o Outcome) {
		outcomes = append(outcomes, o)
	}))
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	paths := makePaths(12)
	s := dispatchWithDeadline(t, d, ctx, paths)
	if s.Total != len(paths) || s.Failed != len(paths) {
		t.Fatalf("summary = %+v, want all %d failed", s, len(paths))
	}
	for _, p := range paths {
		if u.callsFor(p) != 0 {
			t.Fatalf("updater invoked for %s after cancellation", p)
		}
	}
	for _, o := range outcomes {
		if !errors.Is(o.Err, context.Canceled) {
			t.Fatalf("outcome %s err = %v, want context.Canceled", o.Path, o.Err)
		}
	}

	warn := rec.mustFind(t, "Run cancelled, remaining repositories reported as failed")
	if warn["level"] != "WARN" || warn["error"] != context.Canceled.Error() {
		t.Fatalf("cancellation record = %v", warn)
	}
}

func TestDispatcher_NoCancellationWarningOnNormalRun(t *testing.T) {
	logger, rec := newTestLogger()
	d, err := NewDispatcher(newCountingUpdater(), logger)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	dispatchWithDeadline(t, d, context.Background(), makePaths(8))

	for _, r := range rec.records(t) {
		if r.Level == "WARN" {
			t.Fatalf("unexpected warning: %+v", r)
		}
	}
}

func TestDispatcher_UpdateLogsCarryWorkerID(t *testing.T) {
	opener := vcstest.NewOpener()
	paths := makePaths(6)
	for _, p := range paths {
		opener.Add(p, &vcstest.Repo{Branches: []string{"main"}})
	}
	logger, rec := newTestLogger()
	u, err := NewUpdater(opener, logger)
	if err != nil {
		t.Fatalf("NewUpdater: %v", err)
	}
	d, err := NewDispatcher(u, logger, WithWorkers(2))
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	dispatchWithDeadline(t, d, context.Background(), paths)

	got := rec.all(t, "Branch not found, skipping")
	if len(got) != len(paths) {
		t.Fatalf("got %d branch-not-found records, want %d", len(got), len(paths))
	}
	for _, r := range got {
		w, ok := r["worker"].(float64)
		if !ok || w < 1 || w > 2 {
			t.Fatalf("record without a valid worker id: %v", r)
		}
		if r["path"] == nil {
			t.Fatalf("record without path: %v", r)
		}
	}
}

func TestDispatcher_EmptyInput(t *testing.T) {
	d := newTestDispatcher(t, newCountingUpdater())
	s := dispatchWithDeadline(t, d, context.Background(), nil)
	if s.Total != 0 || s.Updated != 0 {
		t.Fatalf("summary = %+v, want zero", s)
	}
}

func TestDispatcher_Run_ExampleScenario(t *testing.T) {
	parent := t.TempDir()
	for _, name := range []string{"repoA", "repoB", "repoC", "repoD"} {
		if err := os.Mkdir(filepath.Join(parent, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	opener := vcstest.NewOpener()
	repoA := opener.Add(filepath.Join(parent, "repoA"), &vcstest.Repo{Branches: []string{"develop", "main"}})
	repoB := opener.Add(filepath.Join(parent, "repoB"), &vcstest.Repo{Bare: true, Branches: []string{"develop"}})
	repoC := opener.Add(filepath.Join(parent, "repoC"), &vcstest.Repo{Dirty: true, Branches: []string{"develop"}})
	repoD := opener.Add(filepath.Join(parent, "repoD"), &vcstest.Repo{Branches: []string{"main"}})

	logger, _ := newTestLogger()
	u, err := NewUpdater(opener, logger)
	if err != nil {
		t.Fatalf("NewUpdater: %v", err)
	}
	var mu sync.Mutex
	byPath := make(map[string]Outcome)
	d := newTestDispatcher(t, u, WithObserver(func(o Outcome) {
		mu.Lock()
		byPath[filepath.Base(o.Path)] = o
		mu.Unlock()
	}))

	s, err := d.Run(context.Background(), parent, "develop")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Updated != 1 || s.Total != 4 {
		t.Fatalf("summary = %+v, want updated 1 of 4", s)
	}

	want := map[string]SkipReason{"repoB": ReasonBare, "repoC": ReasonDirty, "repoD": ReasonBranchNotFound}
	for name, reason := range want {
		if got := byPath[name]; got.Status != StatusSkipped || got.Reason != reason {
			t.Errorf("%s outcome = %+v, want skipped/%s", name, got, reason)
		}
	}
	if !byPath["repoA"].Updated() {
		t.Errorf("repoA outcome = %+v, want updated", byPath["repoA"])
	}
	if repoA.Pulls() != 1 {
		t.Errorf("repoA pulls = %d, want 1", repoA.Pulls())
	}
	for name, r := range map[string]*vcstest.Repo{"repoB": repoB, "repoC": repoC, "repoD": repoD} {
		if r.Mutated() {
			t.Errorf("%s was mutated", name)
		}
	}
}

func TestDispatcher_Run_ListingError(t *testing.T) {
	d := newTestDispatcher(t, newCountingUpdater())
	if _, err := d.Run(context.Background(), filepath.Join(t.TempDir(), "missing"), "develop"); err == nil {
		t.Fatal("expected error for missing parent directory")
	}
}

func TestNewDispatcher_Validation(t *testing.T) {
	logger, _ := newTestLogger()
	u := newCountingUpdater()
	tests := []struct {
		name string
		u    RepositoryUpdater
		opts []DispatcherOption
	}{
		{name: "nil updater", u: nil},
		{name: "zero workers", u: u, opts: []DispatcherOption{WithWorkers(0)}},
		{name: "zero queue", u: u, opts: []DispatcherOption{WithQueueSize(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDispatcher(tt.u, logger, tt.opts...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if _, err := NewDispatcher(u, nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}
